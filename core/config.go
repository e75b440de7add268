package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	databaseConfig struct {
		Engine        string // postgres (default), sqlite3, memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ensalamentoConfig holds the exam-room distribution limits and the seating grid size.
	ensalamentoConfig struct {
		MaxTotal    int
		MaxPerClass int
		GridRows    int
		GridColumns int
	}

	rosterConfig struct {
		CacheTTL time.Duration
	}

	notifyConfig struct {
		ReportRecipients []string
		CountryCode      string
	}

	Config struct {
		Env              string
		Build            string
		AppName          string
		Debug            bool
		TestMode         bool
		WorkDir          string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server      serverConfig
		Database    databaseConfig
		Ensalamento ensalamentoConfig
		Roster      rosterConfig
		Notify      notifyConfig
	}
)

func (c databaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

// NewConfig reads the configuration from the environment, optionally loaded from config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "SRF Escolas")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "srf_escolas")
	v.SetDefault("database.user", "srf")
	v.SetDefault("database.password", "srf")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("ensalamento.maxTotal", 40)
	v.SetDefault("ensalamento.maxPerClass", 2)
	v.SetDefault("ensalamento.gridRows", 6)
	v.SetDefault("ensalamento.gridColumns", 6)

	v.SetDefault("roster.cacheTTL", 5*time.Minute)

	v.SetDefault("notify.reportRecipients", []string{})
	v.SetDefault("notify.countryCode", "55")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          workDir,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: serverConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Ensalamento: ensalamentoConfig{
			MaxTotal:    v.GetInt("ensalamento.maxTotal"),
			MaxPerClass: v.GetInt("ensalamento.maxPerClass"),
			GridRows:    v.GetInt("ensalamento.gridRows"),
			GridColumns: v.GetInt("ensalamento.gridColumns"),
		},
		Roster: rosterConfig{
			CacheTTL: v.GetDuration("roster.cacheTTL"),
		},
		Notify: notifyConfig{
			ReportRecipients: v.GetStringSlice("notify.reportRecipients"),
			CountryCode:      v.GetString("notify.countryCode"),
		},
	}
}
