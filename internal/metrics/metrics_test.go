package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserversCount(t *testing.T) {
	m := New()

	m.ObserveOTPSend("sms", "ok")
	m.ObserveOTPSend("sms", "ok")
	m.ObserveOTPVerify("invalid_code")
	m.ObserveAccept("ok", 15*time.Millisecond)
	m.ObservePosting("order_accept")
	m.ObserveOrderCreated()
	m.ObserveOrderExpired()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.otpSendsTotal.WithLabelValues("sms", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.otpVerifiesTotal.WithLabelValues("invalid_code")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderAcceptsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerPostings.WithLabelValues("order_accept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersCreated))
	assert.Equal(t, 1, testutil.CollectAndCount(m.acceptDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOTPSend("sms", "ok")
		m.ObserveAccept("ok", time.Second)
		m.ObserveOrderExpired()
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
