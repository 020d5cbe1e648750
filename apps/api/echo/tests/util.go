package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/kagisom/imfundo/apps/api/echo"
	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
	emailsvc "github.com/kagisom/imfundo/services/email"
	filestoresvc "github.com/kagisom/imfundo/services/filestore"
	inmemdb "github.com/kagisom/imfundo/storage/database/inmem"
	testutil "github.com/kagisom/imfundo/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf    *core.Config
	usrRepo user.Repository
	enrRepo enrollment.Repository
	usrSvc  user.Service
	enrSvc  enrollment.Service
	server  Server
}

func setup(t *testing.T) *testEnv {
	// set up DB & repos
	db, err := inmemdb.Open()
	require.NoError(t, err)
	usrRepo := inmemdb.NewUserRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)

	// set up services
	conf := testutil.NewConfig()
	conf.Storage = core.StorageConfig{Root: t.TempDir(), BaseURL: "http://localhost:8000/uploads"}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	enrSvc := enrollment.NewService(nil, enrRepo, usrSvc, mailSvc, testutil.Logger{}, conf)
	fileStore, err := filestoresvc.NewLocalService(conf)
	require.NoError(t, err)

	validate, translator := testutil.NewValidators()

	// set up server
	server := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         testutil.Logger{},
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		EnrollSvc:      enrSvc,
		FileStore:      fileStore,
		SignalShutdown: func() {},
	})

	return &testEnv{
		conf:    conf,
		usrRepo: usrRepo,
		enrRepo: enrRepo,
		usrSvc:  usrSvc,
		enrSvc:  enrSvc,
		server:  server,
	}
}

type httpErr struct {
	Error string `json:"error"`
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

func getToken(t *testing.T, conf *core.Config, acct enrollment.Account) string {
	claims := GetAccountClaims(conf, acct)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
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
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCode(t *testing.T, wantCode int, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, wantCode int, wantData []byte, rec *httptest.ResponseRecorder) {
	t.Helper()
	checkCode(t, wantCode, rec)
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(wantData))
	}
}
