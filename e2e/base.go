package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSuite boots the whole stack in-process on a temporary badger
// store and exposes HTTP and websocket helpers to scenario tests.
type BaseSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	db     *badger.DB
	dir    string
}

func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	s.dir, err = os.MkdirTemp("", "chat-relay-e2e-*")
	s.Require().NoError(err)

	s.db, err = badger.Open(badger.DefaultOptions(s.dir).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)

	log := logs.GetLoggerFromString("ERROR")
	messageRepository := repositories.NewMessageRepository(s.db, log)
	userRepository := repositories.NewUserRepository(s.db)

	coordinator := runtime.NewCoordinator(log, messageRepository, userRepository, runtime.DefaultRecentCacheCapacity)
	chatService := services.NewChatService(coordinator)
	authService := services.NewAuthService(userRepository, time.Hour)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	httpapi.NewServer(log, chatService, authService).Register(engine)
	ws.NewHandler(log, chatService, authService, s.Config.BufferSize, s.Config.SinkTimeout).Register(engine)

	s.server = httptest.NewServer(engine)
}

func (s *BaseSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	_ = os.RemoveAll(s.dir)
}

// RegisterUser creates an account through the REST surface and
// returns the issued token.
func (s *BaseSuite) RegisterUser(username, password string) string {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	s.Require().NoError(err)

	resp, err := http.Post(s.server.URL+"/api/users/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var payload struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&payload))
	s.Require().NotEmpty(payload.Token)
	return payload.Token
}

// GetJSON performs an authenticated GET and decodes the response into out.
func (s *BaseSuite) GetJSON(path, token string, out any) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

// DialWS opens a websocket connection to the server.
func (s *BaseSuite) DialWS() *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	s.Require().NoError(err)
	return conn
}

// SendFrame writes one typed frame.
func (s *BaseSuite) SendFrame(conn *websocket.Conn, frameType string, payload any) {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(ws.Frame{Type: frameType, Payload: raw}))
}

// WaitForFrame reads frames until one of the wanted type arrives and
// returns its payload. Frames of other types are skipped: presence
// and announce traffic interleaves freely with what a step expects.
func (s *BaseSuite) WaitForFrame(conn *websocket.Conn, frameType string) json.RawMessage {
	deadline := time.Now().Add(s.Config.ReadTimeout)
	s.Require().NoError(conn.SetReadDeadline(deadline))

	for {
		var frame ws.Frame
		err := conn.ReadJSON(&frame)
		s.Require().NoError(err, "waiting for frame %q", frameType)

		if s.Config.DebugFrames {
			s.T().Logf("frame %s: %s", frame.Type, string(frame.Payload))
		}
		if frame.Type == frameType {
			return frame.Payload
		}
		s.Require().True(time.Now().Before(deadline), "timed out waiting for frame %q", frameType)
	}
}

// Authenticate runs the credential handshake and returns the user id
// confirmed by the server.
func (s *BaseSuite) Authenticate(conn *websocket.Conn, token string) string {
	s.SendFrame(conn, "authenticate", map[string]string{"credential": token})

	payload := s.WaitForFrame(conn, "auth_success")
	var authed struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	s.Require().NoError(json.Unmarshal(payload, &authed))
	s.Require().NotEmpty(authed.UserID)
	return authed.UserID
}

func (s *BaseSuite) Step(name string, fn func()) {
	s.T().Log(fmt.Sprintf("  ====== %s ======", name))
	fn()
}
