package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload string, secret string, at time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func event(typ, object string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":"2023-10-16","type":%q,"data":{"object":%s}}`, typ, object)
}

func TestParseWebhook_CheckoutCompleted(t *testing.T) {
	s := NewStripe("sk_test", testSecret, nil)
	body := event("checkout.session.completed",
		`{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","metadata":{"booking_id":"42"}}`)

	n, err := s.ParseWebhook([]byte(body), sign(t, body, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, KindPaymentSucceeded, n.Kind)
	assert.Equal(t, uint64(42), n.BookingID)
	assert.Equal(t, "cs_test_1", n.SessionID)
	assert.Equal(t, "evt_1", n.EventID)
}

func TestParseWebhook_PaymentIntentSucceeded(t *testing.T) {
	s := NewStripe("sk_test", testSecret, nil)
	body := event("payment_intent.succeeded",
		`{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"booking_id":"7"}}`)

	n, err := s.ParseWebhook([]byte(body), sign(t, body, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, KindPaymentSucceeded, n.Kind)
	assert.Equal(t, uint64(7), n.BookingID)
}

func TestParseWebhook_Ignored(t *testing.T) {
	s := NewStripe("sk_test", testSecret, nil)
	cases := map[string]string{
		"other type": event("customer.created", `{"id":"cus_1","object":"customer"}`),
		"unpaid session": event("checkout.session.completed",
			`{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","metadata":{"booking_id":"1"}}`),
		"foreign payment": event("payment_intent.succeeded", `{"id":"pi_2","object":"payment_intent","metadata":{}}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := s.ParseWebhook([]byte(body), sign(t, body, testSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, KindIgnored, n.Kind)
			assert.Zero(t, n.BookingID)
		})
	}
}

func TestParseWebhook_Rejects(t *testing.T) {
	s := NewStripe("sk_test", testSecret, nil)
	body := event("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","metadata":{"booking_id":"7"}}`)

	_, err := s.ParseWebhook([]byte(body), sign(t, body, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseWebhook([]byte(body), sign(t, body, testSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = s.ParseWebhook([]byte(body), "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	bad := event("payment_intent.succeeded", `{"id":"pi_1","object":"payment_intent","metadata":{"booking_id":"abc"}}`)
	_, err = s.ParseWebhook([]byte(bad), sign(t, bad, testSecret, time.Now()))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestParseWebhook_NoSecretRejectsEverything(t *testing.T) {
	s := NewStripe("sk_test", "", nil)
	body := event("payment_intent.succeeded",
		`{"id":"pi_1","object":"payment_intent","status":"succeeded","metadata":{"booking_id":"1"}}`)

	n, err := s.ParseWebhook([]byte(body), sign(t, body, "", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Nil(t, n)
}

func TestCreateCheckout(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"cs_test_9","object":"checkout.session","url":"https://pay.example/cs_test_9","expires_at":1900000000}`)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	s := NewStripe("sk_test", testSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	sess, err := s.CreateCheckout(context.Background(), CheckoutRequest{
		BookingID:   42,
		AmountMinor: 40000,
		Currency:    "inr",
		ProductName: "Heat",
		SuccessURL:  "https://app.example/loading/my-bookings",
		CancelURL:   "https://app.example/my-bookings",
		ExpiresAt:   now.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_9", sess.ID)
	assert.Equal(t, "https://pay.example/cs_test_9", sess.URL)

	assert.Equal(t, "42", form.Get("metadata[booking_id]"))
	assert.Equal(t, "42", form.Get("payment_intent_data[metadata][booking_id]"))
	assert.Equal(t, "40000", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "inr", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, fmt.Sprint(now.Add(minCheckoutLifetime).Unix()), form.Get("expires_at"),
		"expiry is raised to the gateway minimum")
}

func TestExpireCheckout(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"cs_test_9","object":"checkout.session","status":"expired"}`)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	s := NewStripe("sk_test", testSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	require.NoError(t, s.ExpireCheckout(context.Background(), "cs_test_9"))
	assert.Equal(t, "/v1/checkout/sessions/cs_test_9/expire", path)
}
