package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AtoyanMikhail/deviceauth/internal/apperr"
	"github.com/AtoyanMikhail/deviceauth/internal/auth"
	"github.com/AtoyanMikhail/deviceauth/internal/device"
	"github.com/AtoyanMikhail/deviceauth/internal/logger"
	"github.com/AtoyanMikhail/deviceauth/internal/metrics"
	"github.com/AtoyanMikhail/deviceauth/internal/models"
	"github.com/AtoyanMikhail/deviceauth/internal/storage"
	"github.com/AtoyanMikhail/deviceauth/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	validToken = "Bearer valid-access-token"
	firefoxUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"

	currentDeviceID = "5f0c3a1e-8b7d-4c2a-9e61-0d4b2f7a9c13"
	otherDeviceID   = "a4d91b62-3e7f-4f08-b5c2-6e1a9d0f4b27"
	unknownDeviceID = "c8e27f40-1b5a-4d93-8f6e-2a7c0b3d5e91"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

// Mock AuthService for testing handlers
type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, in auth.SignupInput) (auth.Tokens, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(auth.Tokens), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string, info device.Info) (auth.Tokens, error) {
	args := m.Called(ctx, email, password, info)
	return args.Get(0).(auth.Tokens), args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(auth.Tokens), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthService) Devices(ctx context.Context, userID string) ([]auth.DeviceView, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]auth.DeviceView), args.Error(1)
}

func (m *mockAuthService) LogoutDevice(ctx context.Context, userID, deviceID string) error {
	return m.Called(ctx, userID, deviceID).Error(0)
}

func (m *mockAuthService) LogoutAllDevices(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, password, confirmPassword, deviceID string) error {
	return m.Called(ctx, userID, password, confirmPassword, deviceID).Error(0)
}

// Mock ProfileService for testing handlers
type mockProfileService struct {
	mock.Mock
}

func (m *mockProfileService) Me(ctx context.Context, userID string) (user.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(user.Profile), args.Error(1)
}

func (m *mockProfileService) Update(ctx context.Context, userID string, in user.UpdateInput) (user.Profile, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(user.Profile), args.Error(1)
}

// Mock Authenticator for testing protected routes
type mockGate struct {
	mock.Mock
}

func (m *mockGate) Authenticate(ctx context.Context, authorization string) (auth.Identity, error) {
	args := m.Called(ctx, authorization)
	return args.Get(0).(auth.Identity), args.Error(1)
}

type testServer struct {
	router   *gin.Engine
	auth     *mockAuthService
	profiles *mockProfileService
	gate     *mockGate
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		auth:     &mockAuthService{},
		profiles: &mockProfileService{},
		gate:     &mockGate{},
	}
	s.gate.On("Authenticate", mock.Anything, validToken).
		Return(auth.Identity{UserID: "user-1", DeviceID: currentDeviceID, Email: "neo@matrix.io"}, nil).Maybe()
	s.gate.On("Authenticate", mock.Anything, mock.Anything).
		Return(auth.Identity{}, apperr.ErrUnauthenticated).Maybe()

	h := New(s.auth, s.profiles, s.gate, metrics.NewNop(), logger.NewNop(), 1<<20)
	s.router = h.Router()
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type filePart struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("avatar", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var res models.ErrorRes
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Error
}

func signupFields() map[string]string {
	return map[string]string{
		"email":           "neo@matrix.io",
		"password":        "S3cure!pass",
		"confirmPassword": "S3cure!pass",
		"name":            "Thomas Anderson",
		"deviceType":      "web",
	}
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestSignup(t *testing.T) {
	s := setupTestServer(t)
	tokens := auth.Tokens{AccessToken: "a", RefreshToken: "r"}

	s.auth.On("Signup", mock.Anything, mock.MatchedBy(func(in auth.SignupInput) bool {
		return in.Email == "neo@matrix.io" &&
			in.Device == device.Info{Type: device.Web, UserAgent: firefoxUA} &&
			in.Avatar != nil && in.Avatar.ContentType == "image/png" && in.Avatar.Filename == "me.png"
	})).Return(tokens, nil).Once()

	req := multipartRequest(t, http.MethodPost, "/auth/signup", signupFields(), &filePart{name: "me.png", data: pngBytes})
	req.Header.Set("User-Agent", firefoxUA)
	w := s.do(req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"tokens":{"accessToken":"a","refreshToken":"r"}}`, w.Body.String())
	s.auth.AssertExpectations(t)
}

func TestSignup_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		file    *filePart
		wantMsg string
	}{
		{
			name:    "bad email",
			mutate:  func(f map[string]string) { f["email"] = "not-an-email" },
			wantMsg: "Invalid email format",
		},
		{
			name:    "short password",
			mutate:  func(f map[string]string) { f["password"] = "S3!a" },
			wantMsg: "Password must be at least 8 characters",
		},
		{
			name:    "weak password",
			mutate:  func(f map[string]string) { f["password"] = "alllowercase" },
			wantMsg: passwordRules,
		},
		{
			name:    "digits in name",
			mutate:  func(f map[string]string) { f["name"] = "Neo 1" },
			wantMsg: "Name can only contain letters and spaces",
		},
		{
			name:    "unknown device type",
			mutate:  func(f map[string]string) { f["deviceType"] = "toaster" },
			wantMsg: "DeviceType must be one of: web, ios, android, other",
		},
		{
			name:    "missing name",
			mutate:  func(f map[string]string) { delete(f, "name") },
			wantMsg: "Name is required",
		},
		{
			name:    "avatar is not an image",
			file:    &filePart{name: "me.png", data: []byte("just some text")},
			wantMsg: "Invalid file type. Allowed types: image/jpeg, image/png, image/webp",
		},
		{
			name:    "avatar extension",
			file:    &filePart{name: "me.gif", data: pngBytes},
			wantMsg: "Invalid file extension. Allowed extensions: .jpg, .jpeg, .png, .webp",
		},
		{
			name:    "avatar too large",
			file:    &filePart{name: "me.png", data: append(append([]byte{}, pngBytes...), make([]byte, 1<<20)...)},
			wantMsg: "File too large. Maximum size allowed is 1MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			fields := signupFields()
			if tt.mutate != nil {
				tt.mutate(fields)
			}

			w := s.do(multipartRequest(t, http.MethodPost, "/auth/signup", fields, tt.file))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, w))
			s.auth.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
		})
	}
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "invalid credentials", err: apperr.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid credentials"},
		{name: "user not found", err: apperr.ErrUserNotFound, wantStatus: http.StatusNotFound, wantMsg: "User not found"},
		{name: "unclassified", err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantMsg: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			s.auth.On("Login", mock.Anything, "neo@matrix.io", "whatever", device.Info{Type: device.IOS, Model: "iPhone 15", UserAgent: "app/1.0"}).
				Return(auth.Tokens{}, tt.err).Once()

			req := jsonRequest(t, http.MethodPost, "/auth/login", gin.H{
				"email": "neo@matrix.io", "password": "whatever", "deviceType": "ios", "model": "iPhone 15",
			})
			req.Header.Set("User-Agent", "app/1.0")
			w := s.do(req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, w))
			s.auth.AssertExpectations(t)
		})
	}
}

func TestRefresh(t *testing.T) {
	s := setupTestServer(t)
	s.auth.On("Refresh", mock.Anything, "old-refresh").Return(auth.Tokens{AccessToken: "a2", RefreshToken: "r2"}, nil).Once()

	w := s.do(jsonRequest(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": "old-refresh"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tokens":{"accessToken":"a2","refreshToken":"r2"}}`, w.Body.String())

	w = s.do(jsonRequest(t, http.MethodPost, "/auth/refresh", gin.H{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "RefreshToken is required", decodeError(t, w))
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	s := setupTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/auth/devices"},
		{http.MethodPost, "/auth/logout/device"},
		{http.MethodPost, "/auth/logout/device/all"},
		{http.MethodPatch, "/auth/password"},
		{http.MethodGet, "/users/me"},
		{http.MethodPatch, "/users/me"},
	}
	for _, r := range routes {
		w := s.do(httptest.NewRequest(r.method, r.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, r.path)
		assert.Equal(t, "Authentication required. No token provided.", decodeError(t, w), r.path)
	}
}

func TestLogoutDevice(t *testing.T) {
	t.Run("own device is refused", func(t *testing.T) {
		s := setupTestServer(t)
		req := jsonRequest(t, http.MethodPost, "/auth/logout/device", gin.H{"deviceId": currentDeviceID})
		req.Header.Set("Authorization", validToken)

		w := s.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w), "/auth/logout")
		s.auth.AssertNotCalled(t, "LogoutDevice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other device", func(t *testing.T) {
		s := setupTestServer(t)
		s.auth.On("LogoutDevice", mock.Anything, "user-1", otherDeviceID).Return(nil).Once()
		req := jsonRequest(t, http.MethodPost, "/auth/logout/device", gin.H{"deviceId": otherDeviceID})
		req.Header.Set("Authorization", validToken)

		w := s.do(req)
		assert.Equal(t, http.StatusOK, w.Code)
		s.auth.AssertExpectations(t)
	})

	t.Run("malformed device id", func(t *testing.T) {
		s := setupTestServer(t)
		req := jsonRequest(t, http.MethodPost, "/auth/logout/device", gin.H{"deviceId": "abc"})
		req.Header.Set("Authorization", validToken)

		w := s.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "DeviceID must be a valid UUID", decodeError(t, w))
		s.auth.AssertNotCalled(t, "LogoutDevice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown device", func(t *testing.T) {
		s := setupTestServer(t)
		s.auth.On("LogoutDevice", mock.Anything, "user-1", unknownDeviceID).Return(apperr.ErrDeviceNotFound).Once()
		req := jsonRequest(t, http.MethodPost, "/auth/logout/device", gin.H{"deviceId": unknownDeviceID})
		req.Header.Set("Authorization", validToken)

		w := s.do(req)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Device not found", decodeError(t, w))
	})
}

func TestDevicesAndPassword(t *testing.T) {
	s := setupTestServer(t)
	lastUsed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.auth.On("Devices", mock.Anything, "user-1").
		Return([]auth.DeviceView{{ID: currentDeviceID, Name: "Firefox on Windows", Type: device.Web, LastUsedAt: lastUsed}}, nil).Once()
	s.auth.On("ChangePassword", mock.Anything, "user-1", "N3w!password", "N3w!password", currentDeviceID).Return(nil).Once()
	s.auth.On("LogoutAllDevices", mock.Anything, "user-1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/auth/devices", nil)
	req.Header.Set("Authorization", validToken)
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"devices":[{"id":"5f0c3a1e-8b7d-4c2a-9e61-0d4b2f7a9c13","name":"Firefox on Windows","type":"web","lastUsedAt":"2026-01-02T03:04:05Z"}]}`,
		w.Body.String())

	req = jsonRequest(t, http.MethodPatch, "/auth/password", gin.H{"password": "N3w!password", "confirmPassword": "N3w!password"})
	req.Header.Set("Authorization", validToken)
	w = s.do(req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout/device/all", nil)
	req.Header.Set("Authorization", validToken)
	w = s.do(req)
	assert.Equal(t, http.StatusOK, w.Code)

	s.auth.AssertExpectations(t)
}

func TestMe(t *testing.T) {
	s := setupTestServer(t)
	url := "https://s3/avatar"
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.profiles.On("Me", mock.Anything, "user-1").Return(user.Profile{
		ID: "user-1", Name: "Neo", Email: "neo@matrix.io", AvatarURL: &url, CreatedAt: created, UpdatedAt: created,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", validToken)
	w := s.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id":"user-1","name":"Neo","email":"neo@matrix.io","avatarUrl":"https://s3/avatar",
		"createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"
	}`, w.Body.String())
}

func TestUpdateMe(t *testing.T) {
	s := setupTestServer(t)
	s.profiles.On("Update", mock.Anything, "user-1", mock.MatchedBy(func(in user.UpdateInput) bool {
		return in.Name != nil && *in.Name == "Trinity" && in.Email == nil && in.Avatar == nil
	})).Return(user.Profile{ID: "user-1", Name: "Trinity"}, nil).Once()

	req := multipartRequest(t, http.MethodPatch, "/users/me", map[string]string{"name": "Trinity"}, nil)
	req.Header.Set("Authorization", validToken)
	w := s.do(req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.profiles.AssertExpectations(t)

	req = multipartRequest(t, http.MethodPatch, "/users/me", map[string]string{"email": "nope"}, nil)
	req.Header.Set("Authorization", validToken)
	w = s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email format", decodeError(t, w))
}

func TestRecovery(t *testing.T) {
	s := setupTestServer(t)
	s.auth.On("Refresh", mock.Anything, "boom").Run(func(mock.Arguments) { panic("boom") })

	w := s.do(jsonRequest(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": "boom"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w))
}

func TestReadAvatar_DetectsContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, nil, metrics.NewNop(), logger.NewNop(), 1<<20)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = multipartRequest(t, http.MethodPost, "/", nil, &filePart{name: "ME.JPG", data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")})

	obj, err := h.readAvatar(c)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Equal(t, "ME.JPG", obj.Filename)
	assert.True(t, strings.HasPrefix(string(obj.Data), "\xff\xd8\xff"))

	c.Request = multipartRequest(t, http.MethodPost, "/", map[string]string{"name": "x"}, nil)
	obj, err = h.readAvatar(c)
	assert.NoError(t, err)
	assert.Equal(t, (*storage.Object)(nil), obj)
}
