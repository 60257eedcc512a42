package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hudhurio/apps/api/echo"
	"github.com/trezcool/hudhurio/core"
	"github.com/trezcool/hudhurio/core/attendance"
	"github.com/trezcool/hudhurio/core/audit"
	"github.com/trezcool/hudhurio/core/device"
	"github.com/trezcool/hudhurio/core/dispute"
	emailsvc "github.com/trezcool/hudhurio/services/email"
	logsvc "github.com/trezcool/hudhurio/services/logger"
	inmemdb "github.com/trezcool/hudhurio/storage/database/inmem"
)

type testApp struct {
	conf   *core.Config
	app    echoapi.Server
	devSvc *device.Service
}

func setup(t *testing.T) testApp {
	t.Helper()

	conf := &core.Config{
		AppName:    "hudhurio",
		Env:        "TEST",
		TestMode:   true,
		SecretKey:  "test-secret",
		AdminEmail: "admin@school.test",
		Server:     core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	logger.Enable(false)

	db := inmemdb.NewDB()
	attRepo := inmemdb.NewAttendanceRepository(db)
	devRepo := inmemdb.NewDeviceRepository(db)

	auditSvc := audit.NewService(inmemdb.NewAuditRepository(db))
	attSvc := attendance.NewService(attRepo, devRepo, logger)
	devSvc := device.NewService(devRepo)
	dispSvc := dispute.NewService(
		inmemdb.NewDisputeRepository(db), attRepo, auditSvc, emailsvc.NewConsoleServiceMock(), logger, conf,
	)

	app := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		AttendanceSvc:  attSvc,
		DeviceSvc:      devSvc,
		DisputeSvc:     dispSvc,
		AuditSvc:       auditSvc,
	})
	return testApp{conf: conf, app: app, devSvc: devSvc}
}

func (ta testApp) do(t *testing.T, method, path, token string, body interface{}, headers ...http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if len(headers) > 0 {
		for k, vs := range headers[0] {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
	}
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func (ta testApp) token(t *testing.T, subjectID, schoolID string, isAdmin bool) string {
	t.Helper()
	token, err := echoapi.GenerateToken(ta.conf, echoapi.NewClaims(ta.conf, subjectID, schoolID, isAdmin))
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestAPI_home(t *testing.T) {
	ta := setup(t)
	rec := ta.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Hudhurio API!", rec.Body.String())
}

func TestAPI_authRequired(t *testing.T) {
	ta := setup(t)

	rec := ta.do(t, http.MethodPost, "/v1/attendance/clock-in", "", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_attendanceFlow(t *testing.T) {
	ta := setup(t)
	admin := ta.token(t, "adm1", "sch1", true)
	stu1 := ta.token(t, "stu1", "sch1", false)
	stu2 := ta.token(t, "stu2", "sch1", false)

	// admin fences the campus
	rec := ta.do(t, http.MethodPut, "/v1/geofence", admin, map[string]interface{}{
		"center":        map[string]float64{"latitude": 6.5250, "longitude": 3.3800},
		"radius_meters": 200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// students cannot
	rec = ta.do(t, http.MethodPut, "/v1/geofence", stu1, map[string]interface{}{
		"center":        map[string]float64{"latitude": 6.5250, "longitude": 3.3800},
		"radius_meters": 500,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// clock-in near the gate verifies
	rec = ta.do(t, http.MethodPost, "/v1/attendance/clock-in", stu1, map[string]interface{}{
		"location": map[string]float64{"latitude": 6.5244, "longitude": 3.3792},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var verified attendance.Record
	decode(t, rec, &verified)
	assert.True(t, verified.LocationVerified)
	assert.Equal(t, "stu1", verified.SubjectID)
	assert.InDelta(t, 110, verified.DistanceMeters, 10)

	// clock-in across town records but stays unverified
	rec = ta.do(t, http.MethodPost, "/v1/attendance/clock-in", stu2, map[string]interface{}{
		"location": map[string]float64{"latitude": 6.6000, "longitude": 3.4000},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unverified attendance.Record
	decode(t, rec, &unverified)
	assert.False(t, unverified.LocationVerified)
	assert.Equal(t, attendance.StatusPresent, unverified.Status)

	// clock-out updates the same record
	rec = ta.do(t, http.MethodPost, "/v1/attendance/clock-out", stu1, map[string]interface{}{
		"location": map[string]float64{"latitude": 6.5244, "longitude": 3.3792},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out attendance.Record
	decode(t, rec, &out)
	assert.Equal(t, verified.ID, out.ID)
	assert.False(t, out.CheckOutTime.IsZero())

	// admin sees both records; students are not allowed
	rec = ta.do(t, http.MethodGet, "/v1/attendance", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []attendance.Record
	decode(t, rec, &recs)
	assert.Len(t, recs, 2)

	rec = ta.do(t, http.MethodGet, "/v1/attendance", stu1, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// invalid coordinates are a 400, not a failed check
	rec = ta.do(t, http.MethodPost, "/v1/attendance/clock-in", stu1, map[string]interface{}{
		"location": map[string]float64{"latitude": 95, "longitude": 3.3792},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_disputeFlow(t *testing.T) {
	ta := setup(t)
	admin := ta.token(t, "adm1", "sch1", true)
	stu2 := ta.token(t, "stu2", "sch1", false)

	rec := ta.do(t, http.MethodPut, "/v1/geofence", admin, map[string]interface{}{
		"center":        map[string]float64{"latitude": 6.5250, "longitude": 3.3800},
		"radius_meters": 200,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ta.do(t, http.MethodPost, "/v1/attendance/clock-in", stu2, map[string]interface{}{
		"location": map[string]float64{"latitude": 6.6000, "longitude": 3.4000},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var attRec attendance.Record
	decode(t, rec, &attRec)
	require.False(t, attRec.LocationVerified)

	// the subject disputes the failed check
	rec = ta.do(t, http.MethodPost, "/v1/disputes", stu2, map[string]interface{}{
		"attendance_id": attRec.ID,
		"reason":        "GPS drift indoors, I was in the main hall",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var d dispute.Dispute
	decode(t, rec, &d)
	assert.Equal(t, dispute.StatusPending, d.Status)
	assert.Equal(t, "stu2", d.SubjectID)

	// a second open dispute for the same record is rejected
	rec = ta.do(t, http.MethodPost, "/v1/disputes", stu2, map[string]interface{}{
		"attendance_id": attRec.ID,
		"reason":        "still disputing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// review requires admin
	rec = ta.do(t, http.MethodPost, "/v1/disputes/"+d.ID+"/review", stu2, map[string]interface{}{"approve": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(t, http.MethodPost, "/v1/disputes/"+d.ID+"/review", admin, map[string]interface{}{
		"approve": true,
		"note":    "camera footage confirms presence",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &d)
	assert.Equal(t, dispute.StatusApproved, d.Status)
	assert.Equal(t, "adm1", d.ReviewedBy)

	// the audit feed carries the whole story
	rec = ta.do(t, http.MethodGet, "/v1/audit", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []audit.Entry
	decode(t, rec, &entries)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionGeofenceUpdated)
	assert.Contains(t, actions, audit.ActionDisputeSubmitted)
	assert.Contains(t, actions, audit.ActionDisputeApproved)

	// students cannot read the feed
	rec = ta.do(t, http.MethodGet, "/v1/audit", stu2, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// unknown dispute
	rec = ta.do(t, http.MethodGet, "/v1/disputes/nope", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_deviceSync(t *testing.T) {
	ta := setup(t)

	secret := "gate-a-terminal-secret"
	ctx := context.Background()
	dev, err := ta.devSvc.Register(ctx, device.NewDevice{SchoolID: "sch1", Name: "gateA", Secret: secret})
	require.NoError(t, err)
	_, err = ta.devSvc.Enroll(ctx, device.NewEnrollment{SchoolID: "sch1", BiometricID: "FP001", SubjectID: "stu1"})
	require.NoError(t, err)

	body := map[string]interface{}{
		"scans": []map[string]interface{}{
			{"biometric_id": "FP001", "timestamp": "2026-03-02T07:45:00Z", "scan_type": "check_in"},
			{"biometric_id": "FP999", "timestamp": "2026-03-02T07:46:00Z", "scan_type": "check_in"},
		},
	}

	// no credentials
	rec := ta.do(t, http.MethodPost, "/v1/devices/sync", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad secret
	rec = ta.do(t, http.MethodPost, "/v1/devices/sync", "", body, http.Header{
		"X-Device-ID":     []string{dev.ID},
		"X-Device-Secret": []string{"wrong-secret-wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// ok; the unknown template fails without aborting the batch
	rec = ta.do(t, http.MethodPost, "/v1/devices/sync", "", body, http.Header{
		"X-Device-ID":     []string{dev.ID},
		"X-Device-Secret": []string{secret},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res attendance.SyncResult
	decode(t, rec, &res)
	assert.Equal(t, attendance.SyncResult{Succeeded: 1, Failed: 1}, res)

	// the synced record bypassed the geofence
	admin := ta.token(t, "adm1", "sch1", true)
	rec = ta.do(t, http.MethodGet, "/v1/attendance?subject=stu1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []attendance.Record
	decode(t, rec, &recs)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].LocationVerified)
	assert.Equal(t, attendance.SourceTrustedDevice, recs[0].Source)

	// unmatched scans surface for reconciliation
	rec = ta.do(t, http.MethodGet, "/v1/attendance/scans/unmatched", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []attendance.ScanLog
	decode(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "FP999", logs[0].BiometricID)
}
