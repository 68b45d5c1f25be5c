package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/classifier"
	"github.com/example/plantdoc/internal/controller"
	"github.com/example/plantdoc/internal/handlers"
	"github.com/example/plantdoc/internal/session"
)

func TestServerGracefulShutdownDrainsAnalysis(t *testing.T) {
	logger := zap.NewNop()

	requestStarted := make(chan struct{})
	releaseRequest := make(chan struct{})

	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-requestStarted:
		default:
			close(requestStarted)
		}
		<-releaseRequest
		_, _ = w.Write([]byte(`{"disease":"Leaf Blight","severity":"High","confidence":92,"isPlant":true,"treatment":"Apply fungicide"}`))
	}))
	defer service.Close()
	defer func() {
		select {
		case <-releaseRequest:
		default:
			close(releaseRequest)
		}
	}()

	client := classifier.NewHTTPClient(service.URL+"/predict", logger)
	store := session.NewStore(8, time.Hour, func(id string) *controller.Controller {
		return controller.New(client, logger, controller.WithSessionID(id))
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	if err := handlers.RegisterRoutes(router, handlers.Options{Sessions: store, Logger: logger}); err != nil {
		t.Fatalf("register routes: %v", err)
	}

	t.Log("creating listener")
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	addr := listener.Addr().String()
	base := "http://" + addr
	t.Logf("listening on %s", addr)
	waitForServer(t, addr)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &http.Client{
		Jar:     jar,
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	body, contentType := imageForm(t)
	selectResp, err := httpClient.Post(base+"/select", contentType, body)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	selectResp.Body.Close()
	if selectResp.StatusCode != http.StatusSeeOther {
		t.Fatalf("unexpected select status: %d", selectResp.StatusCode)
	}

	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		t.Log("sending analyze request")
		resp, err := httpClient.Post(base+"/analyze", "application/x-www-form-urlencoded", nil)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-requestStarted:
		t.Log("classification started")
	case <-time.After(2 * time.Second):
		t.Fatal("classification did not start in time")
	}

	t.Log("sending signal")
	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	close(releaseRequest)
	t.Log("released classification")

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		if resp.StatusCode != http.StatusSeeOther {
			b, _ := io.ReadAll(resp.Body)
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(b))
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
		t.Log("server shutdown complete")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}

	u, _ := url.Parse(base)
	cookies := jar.Cookies(u)
	if len(cookies) != 1 {
		t.Fatalf("expected one session cookie, got %d", len(cookies))
	}
	ctrl, ok := store.Get(cookies[0].Value)
	if !ok {
		t.Fatal("session not found")
	}
	if state := ctrl.State(); state.Page != controller.PageResults || state.Result == nil || state.Result.Disease != "Leaf Blight" {
		t.Fatalf("analysis was not applied before shutdown: %+v", state)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"leaf.JPG":  "image/jpeg",
		"leaf.jpeg": "image/jpeg",
		"leaf.png":  "image/png",
		"leaf":      "",
	}
	for path, want := range cases {
		if got := contentTypeFor(path); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func imageForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "leaf.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("png bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
