package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	echoapi "github.com/gabrielfriasw/srf-escolas-sub000/apps/api/echo"
	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	emailsvc "github.com/gabrielfriasw/srf-escolas-sub000/services/email"
	logsvc "github.com/gabrielfriasw/srf-escolas-sub000/services/logger"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/realtime"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/whatsapp"
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
	dummydb "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/dummy"
	boiledrepos "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/sqlboiler"
	sqlxrepos "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/sqlx"
)

// repositories groups the storage backends picked from the configured database engine.
type repositories struct {
	exam      exam.Repository
	roster    roster.Repository
	publisher core.ChangePublisher
	close     func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(logger)

	// set up DB
	repos, err := setUpRepositories(ctx, conf, hub, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	exam.InitValidators(validate, translator)

	rosterSvc := roster.NewService(roster.NewCachedRepository(repos.roster, conf.Roster.CacheTTL), validate)
	examSvc := exam.NewService(exam.ServiceDeps{
		Repo:      repos.exam,
		Classes:   rosterSvc,
		Validate:  validate,
		Publisher: repos.publisher,
		Logger:    logger,
		Mailer:    mailSvc,
		Limits:    exam.Limits{MaxTotal: conf.Ensalamento.MaxTotal, MaxPerClass: conf.Ensalamento.MaxPerClass},
		Grid:      exam.Grid{Rows: conf.Ensalamento.GridRows, Columns: conf.Ensalamento.GridColumns},
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)
	expvar.Publish("subscribers", expvar.Func(func() interface{} { return hub.Len() }))

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			ExamSvc:    examSvc,
			RosterSvc:  rosterSvc,
			Hub:        hub,
			Linker:     whatsapp.NewLinker(conf.Notify.CountryCode),
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sdCtx, sdCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer sdCancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sdCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpRepositories(ctx context.Context, conf *core.Config, hub *realtime.Hub, logger core.Logger) (repositories, error) {
	if conf.Database.Engine == database.EngineMemory {
		db := dummydb.Open()
		return repositories{
			exam:      dummydb.NewExamRepository(db),
			roster:    dummydb.NewRosterRepository(db),
			publisher: hub,
			close:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, err
	}

	repos := repositories{
		exam:      sqlxrepos.NewExamRepository(db),
		roster:    boiledrepos.NewRosterRepository(db),
		publisher: hub,
		close:     db.Close,
	}

	// with postgres, every API instance sees the writes of the others through LISTEN/NOTIFY
	if conf.Database.Engine == database.EnginePostgres {
		if err = realtime.Listen(ctx, database.DSN(conf), hub, logger); err != nil {
			_ = db.Close()
			return repositories{}, err
		}
		repos.publisher = realtime.NewPGNotifier(db, logger)
	}
	return repos, nil
}
