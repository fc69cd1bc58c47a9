package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", APIKey: "test-key"})
}

func TestClient_DeployEscrow(t *testing.T) {
	var got DeployRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deployer/single-release", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","unsignedTransaction":"AAAA"}`))
	})

	tx, err := client.DeployEscrow(context.Background(), DeployRequest{
		Signer:      "GEMPLOYER",
		Amount:      json.Number("100.00"),
		PlatformFee: json.Number("2"),
	})

	require.NoError(t, err)
	assert.Equal(t, "AAAA", tx.XDR)
	assert.Equal(t, "GEMPLOYER", got.Signer)
	assert.Equal(t, json.Number("100.00"), got.Amount)
}

func TestClient_MissingUnsignedTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	})

	_, err := client.FundEscrow(context.Background(), FundRequest{ContractID: "C1"})

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsTransient(err))
}

func TestClient_SendTransaction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "signed", body["signedXdr"])
		_, _ = w.Write([]byte(`{"status":"SUCCESS","contractId":"C1","transactionHash":"abc"}`))
	})

	res, err := client.SendTransaction(context.Background(), "signed")

	require.NoError(t, err)
	assert.Equal(t, "C1", res.ContractID)
	assert.Equal(t, "abc", res.TransactionHash)
}

func TestClient_SendTransactionFailedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","message":"Milestone has already been approved"}`))
	})

	_, err := client.SendTransaction(context.Background(), "signed")

	require.Error(t, err)
	assert.Equal(t, Classification{Signal: SignalAlreadyApproved, FromMessage: true}, Classify(err))
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"FUNDS_ALREADY_RELEASED","message":"nothing to release"}}`))
	})

	_, err := client.ReleaseFunds(context.Background(), ReleaseRequest{ContractID: "C1"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, CodeFundsAlreadyReleased, apiErr.Code)
	assert.Equal(t, SignalAlreadyReleased, Classify(err).Signal)
	assert.False(t, IsTransient(err))
}

func TestClient_ServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})

	_, err := client.ApproveMilestone(context.Background(), ApproveMilestoneRequest{ContractID: "C1"})

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, SignalNone, Classify(err).Signal)
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{"flat", `{"code":"TRUSTLINE_MISSING","message":"no trustline"}`, CodeTrustlineMissing, "no trustline"},
		{"nested", `{"error":{"code":"MILESTONE_ALREADY_APPROVED","message":"approved"}}`, CodeMilestoneAlreadyApproved, "approved"},
		{"string error", `{"error":"Escrow not found"}`, "", "Escrow not found"},
		{"plain text", `Bad Gateway`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := parseAPIError(http.StatusBadRequest, []byte(tt.body))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.body, apiErr.Body)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"code wins", &APIError{Code: CodeMilestoneAlreadyApproved, Message: "funds have been released"}, Classification{Signal: SignalAlreadyApproved}},
		{"message fallback", &APIError{Message: "The escrow funds have been released"}, Classification{Signal: SignalAlreadyReleased, FromMessage: true}},
		{"trustline text", &APIError{Body: "account does not have the required asset"}, Classification{Signal: SignalTrustlineMissing, FromMessage: true}},
		{"unrelated", &APIError{Message: "invalid signature"}, Classification{}},
		{"not an api error", errors.New("already approved"), Classification{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
