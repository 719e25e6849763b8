package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/sunsizer/sunsizer/pkg/storage/storagemock"
	"github.com/sunsizer/sunsizer/pkg/types"
)

func TestSizing(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	mockS.On("GetSession", mock.Anything, "sess-1").Return(defaultTestSession(t), nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp sizingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// 3 fans at 250W for 5h/day at the default config
	assert.Equal(t, 750.0, resp.Load.TotalInstantWatts)
	assert.Equal(t, 3750.0, resp.Load.TotalDailyEnergyWH)
	assert.InDelta(t, 3157.89, resp.Sizing.EnergyRequiredWH, 0.01)
	assert.InDelta(t, 164.47, resp.Sizing.RequiredBatteryAH, 0.01)
	assert.InDelta(t, 842.11, resp.Sizing.RequiredPVWatts, 0.01)
	assert.InDelta(t, 43.86, resp.Sizing.ControllerCurrentAmps, 0.01)
	assert.Equal(t, 1000.0, resp.Sizing.RecommendedInverterWatts)
	assert.Equal(t, 5.0, resp.Sizing.RechargeWindowHours)
}

func TestSizingRecomputesAggregate(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	// second call returns a session with an extra entry, the response must
	// reflect the new load even though nothing else changed
	session := defaultTestSession(t)
	grown := defaultTestSession(t)
	grown.Entries = append(grown.Entries, types.LoadEntry{Name: "Fridge", UnitWatts: 200, Quantity: 1, HoursPerDay: 24})
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil).Once()
	mockS.On("GetSession", mock.Anything, "sess-1").Return(grown, nil).Once()

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")

	w := httptest.NewRecorder()
	srv.handleSizing(w, req)
	var first sizingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 750.0, first.Load.TotalInstantWatts)

	w = httptest.NewRecorder()
	srv.handleSizing(w, req)
	var second sizingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, 950.0, second.Load.TotalInstantWatts)
}

func TestSizingEmptyLoadSet(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Entries = nil
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "add at least one load entry")
}

func TestSizingMissingSelection(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Selections.Battery = ""
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "choose a battery")
}

func TestSizingUnknownSelection(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Selections.Panel = "Discontinued 500W"
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "Discontinued 500W")
}

func TestSizingInvalidConfig(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Config.DepthOfDischarge = 1.5
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), "depthOfDischarge")
}

func TestSizingFastRechargeMode(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Config.ChargeMode = types.ChargeModeFastRecharge
	session.Config.FastRechargeHours = 2
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/sizing?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleSizing(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp sizingResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2.0, resp.Sizing.RechargeWindowHours)
	// halving the window relative to energy means more PV than sun-hours mode
	assert.InDelta(t, 2105.26, resp.Sizing.RequiredPVWatts, 0.01)
}

func TestEstimate(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	mockS.On("GetSession", mock.Anything, "sess-1").Return(defaultTestSession(t), nil)

	req := httptest.NewRequest("GET", "/api/estimate?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleEstimate(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	var resp estimateResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// 0.73 battery units and 2.81 panels round up to whole purchases
	assert.Equal(t, 1, resp.Cost.BatteryUnits)
	assert.Equal(t, 3, resp.Cost.PanelUnits)
	assert.Equal(t, "250000", resp.Cost.BatteryCost.String())
	assert.Equal(t, "300000", resp.Cost.SolarCost.String())
	assert.Equal(t, "200000", resp.Cost.InverterCost.String())
	// 20% of the 750000 subtotal lands exactly on the installation floor
	assert.Equal(t, "150000", resp.Cost.InstallationCost.String())
	assert.Equal(t, "900000", resp.Cost.TotalCost.String())
}

func TestEstimateRequiresInverterSelection(t *testing.T) {
	mockS := &storagemock.MockDatabase{}
	srv := newTestServer(mockS)

	session := defaultTestSession(t)
	session.Selections.Inverter = ""
	mockS.On("GetSession", mock.Anything, "sess-1").Return(session, nil)

	req := httptest.NewRequest("GET", "/api/estimate?sessionID=sess-1", nil)
	req = withSessionID(req, "sess-1")
	w := httptest.NewRecorder()

	srv.handleEstimate(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Result().StatusCode)
}
