package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/gabrielfriasw/srf-escolas-sub000/apps/api/echo"
	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/email"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/realtime"
	"github.com/gabrielfriasw/srf-escolas-sub000/services/whatsapp"
	dummydb "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/dummy"
	"github.com/gabrielfriasw/srf-escolas-sub000/tests"
)

const examDate = "2024-03-01"

var ctxBg = context.Background()

type testApp struct {
	srv     *Server
	examSvc *exam.Service
	hub     *realtime.Hub
	classes map[string]roster.Class
}

func setup(t *testing.T, rows ...roster.NewStudent) *testApp {
	conf := testutil.NewConfig()
	conf.Notify.ReportRecipients = []string{"coord@school.test"}

	// set up DB & repos
	db := dummydb.Open()
	rosterRepo := dummydb.NewRosterRepository(db)
	examRepo := dummydb.NewExamRepository(db)

	app := &testApp{hub: realtime.NewHub(nil)}
	if len(rows) > 0 {
		app.classes = testutil.CreateRoster(t, rosterRepo, rows...)
	}

	// set up services
	validate, translator := core.NewValidator()
	exam.InitValidators(validate, translator)
	rosterSvc := roster.NewService(rosterRepo, validate)
	app.examSvc = exam.NewService(exam.ServiceDeps{
		Repo:      examRepo,
		Classes:   rosterSvc,
		Validate:  validate,
		Publisher: app.hub,
		Mailer:    emailsvc.NewConsoleServiceMock(conf),
		Limits:    exam.Limits{MaxTotal: conf.Ensalamento.MaxTotal, MaxPerClass: conf.Ensalamento.MaxPerClass},
		Grid:      exam.Grid{Rows: conf.Ensalamento.GridRows, Columns: conf.Ensalamento.GridColumns},
		Shuffler:  testutil.NewSeededShuffler(1),
	})

	// set up server
	app.srv = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     core.NopLogger{},
		ExamSvc:    app.examSvc,
		RosterSvc:  rosterSvc,
		Hub:        app.hub,
		Linker:     whatsapp.NewLinker(conf.Notify.CountryCode),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.srv.Close() })
	return app
}

func (app *testApp) classIDs(names ...string) []string {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, app.classes[n].ID)
	}
	return ids
}

// createSession creates a distributed session straight through the service.
func (app *testApp) createSession(t *testing.T, classNames ...string) exam.SessionDetails {
	t.Helper()
	details, err := app.examSvc.CreateAndDistribute(ctxBg, exam.NewSession{
		Name:     "Prova Bimestral",
		Date:     examDate,
		OwnerID:  "teacher-1",
		ClassIDs: app.classIDs(classNames...),
	})
	if err != nil {
		t.Fatalf("createSession() failed: %v", err)
	}
	return details
}

func (app *testApp) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.srv.ServeHTTP(rec, req)
	return rec
}

func defaultRoster() []roster.NewStudent {
	var rows []roster.NewStudent
	rows = append(rows, testutil.Students("9A", 5)...)
	rows = append(rows, testutil.Students("9B", 3)...)
	rows = append(rows, testutil.Students("9C", 1)...)
	return rows
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		assert.Empty(t, rec.Body.String())
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
