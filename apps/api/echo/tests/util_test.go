package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/tuzo/apps/api/echo"
	"github.com/trezcool/tuzo/core/authz"
	"github.com/trezcool/tuzo/core/coin"
	"github.com/trezcool/tuzo/core/engagement"
	"github.com/trezcool/tuzo/core/org"
	"github.com/trezcool/tuzo/core/quest"
	"github.com/trezcool/tuzo/core/user"
	"github.com/trezcool/tuzo/core/wallet"
	emailsvc "github.com/trezcool/tuzo/services/email"
	dummydb "github.com/trezcool/tuzo/storage/database/dummy"
)

// testLogger drops everything; the error handler logs 500s and tests do not
// need the noise.
type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

type testEnv struct {
	app *echoapi.Server

	usrRepo        user.Repository
	orgRepo        org.Repository
	walletRepo     wallet.Repository
	questRepo      quest.Repository
	engagementRepo engagement.Repository

	usrSvc   user.ServiceInterface
	questSvc quest.ServiceInterface
	coinSvc  coin.ServiceInterface
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	usrRepo := dummydb.NewUserRepository(db)
	orgRepo := dummydb.NewOrgRepository(db)
	walletRepo := dummydb.NewWalletRepository(db)
	questRepo := dummydb.NewQuestRepository(db)
	engagementRepo := dummydb.NewEngagementRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(db, usrRepo, mailSvc, conf)
	orgSvc := org.NewService(db, orgRepo)
	questSvc := quest.NewService(db, questRepo)
	gate := authz.NewGate(orgSvc)
	coinSvc := coin.NewService(db, gate, walletRepo, questRepo, engagementRepo, usrRepo, orgRepo, mailSvc, testLogger{}, conf)

	app := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         testLogger{},
			UserSvc:        usrSvc,
			OrgSvc:         orgSvc,
			QuestSvc:       questSvc,
			CoinSvc:        coinSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		},
	)

	return &testEnv{
		app:            app,
		usrRepo:        usrRepo,
		orgRepo:        orgRepo,
		walletRepo:     walletRepo,
		questRepo:      questRepo,
		engagementRepo: engagementRepo,
		usrSvc:         usrSvc,
		questSvc:       questSvc,
		coinSvc:        coinSvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	// lists may come back in a different order
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if ok1 && ok2 {
		return assert.ElementsMatch(t, l1, l2), nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
