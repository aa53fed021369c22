package optimalblue_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"ratewatch/internal/rates/optimalblue"
)

var testWidget = optimalblue.Widget{ClientID: "c", UserID: "u", FormID: "f"}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: a complete widget should return a client.
	client, err := optimalblue.NewClient(testWidget)
	require.NoErrorf(t, err, "unexpected error: %v", err)
	require.NotNilf(t, client, "unexpected nil client")

	// Assert: a widget without ids is rejected.
	client, err = optimalblue.NewClient(optimalblue.Widget{})
	require.Error(t, err)
	require.Nil(t, client)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Arrange: define a base url
	baseURL := "http://localhost:8080"

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			return okResponse(`{"results":{"$values":[]}}`), nil
		}).
		Times(1)

	// Arrange: create a new client.
	client, err := optimalblue.NewClient(testWidget, optimalblue.WithHTTPClient(httpClient), optimalblue.WithBaseURL(baseURL))
	require.NoError(t, err)

	// Act: call GetResults with the overridden base URL.
	_, err = client.GetResults(context.Background(), optimalblue.Inputs{})
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method to check the header
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return okResponse(`{"results":{"$values":[]}}`), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom header.
	client, err := optimalblue.NewClient(testWidget, optimalblue.WithHTTPClient(httpClient), optimalblue.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))
	require.NoError(t, err)

	// Act: call GetResults with the custom header.
	_, err = client.GetResults(context.Background(), optimalblue.Inputs{})
	require.NoError(t, err)
}
