package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEsploraURL = "https://esplora.test/api"

func newMockedEsplora(t *testing.T, tries uint) *Esplora {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	e, err := NewEsplora(testEsploraURL+"/",
		WithHTTPClient(client),
		WithMaxTries(tries),
		WithBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }),
	)
	require.NoError(t, err)
	return e
}

func TestEsploraGetUtxos(t *testing.T) {
	e := newMockedEsplora(t, 3)

	httpmock.RegisterResponder(http.MethodGet, testEsploraURL+"/address/addr1/utxo",
		httpmock.NewStringResponder(200, `[
			{"txid":"aa","vout":1,"value":1500,"status":{"confirmed":true,"block_height":10}},
			{"txid":"bb","vout":0,"value":546,"status":{"confirmed":false}}
		]`))

	got, err := e.GetUtxos(context.Background(), "addr1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aa", got[0].Txid)
	assert.Equal(t, uint32(1), got[0].Vout)
	assert.Equal(t, int64(1500), got[0].Satoshis)
	assert.Equal(t, "bb", got[1].Txid)
	assert.Equal(t, "esplora", e.Name())
}

func TestEsploraEmptyList(t *testing.T) {
	e := newMockedEsplora(t, 1)

	httpmock.RegisterResponder(http.MethodGet, testEsploraURL+"/address/addr1/utxo",
		httpmock.NewStringResponder(200, `[]`))

	got, err := e.GetUtxos(context.Background(), "addr1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEsploraRetriesServerErrors(t *testing.T) {
	e := newMockedEsplora(t, 3)

	url := testEsploraURL + "/address/addr1/utxo"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(503, "busy").
			Then(httpmock.NewStringResponder(200, `[{"txid":"aa","vout":0,"value":1}]`)))

	got, err := e.GetUtxos(context.Background(), "addr1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, httpmock.GetCallCountInfo()["GET "+url])
}

func TestEsploraGivesUpAfterMaxTries(t *testing.T) {
	e := newMockedEsplora(t, 2)

	url := testEsploraURL + "/address/addr1/utxo"
	httpmock.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(500, "down"))

	_, err := e.GetUtxos(context.Background(), "addr1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, httpmock.GetCallCountInfo()["GET "+url])
}

func TestEsploraDoesNotRetryClientErrors(t *testing.T) {
	e := newMockedEsplora(t, 5)

	url := testEsploraURL + "/address/bad/utxo"
	httpmock.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(400, "Invalid Bitcoin address"))

	_, err := e.GetUtxos(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["GET "+url])
}

func TestEsploraMalformedBody(t *testing.T) {
	e := newMockedEsplora(t, 3)

	url := testEsploraURL + "/address/addr1/utxo"
	httpmock.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(200, `{"not":"a list"}`))

	_, err := e.GetUtxos(context.Background(), "addr1")
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, 1, httpmock.GetCallCountInfo()["GET "+url])
}

func TestEsploraTransportError(t *testing.T) {
	e := newMockedEsplora(t, 2)

	httpmock.RegisterResponder(http.MethodGet, testEsploraURL+"/address/addr1/utxo",
		httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := e.GetUtxos(context.Background(), "addr1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewEsploraRejectsBadURL(t *testing.T) {
	_, err := NewEsplora("not a url")
	assert.Error(t, err)
}
