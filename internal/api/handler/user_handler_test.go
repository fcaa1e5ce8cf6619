package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

func TestUserHandler_List_PassesFiltersAndActor(t *testing.T) {
	e := newEcho()
	var got ports.ListUsersInput
	var gotActor domain.Actor
	stub := &stubUserService{
		getAllFn: func(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error) {
			got, gotActor = in, actor
			return ports.NewPage([]*domain.User{{ID: "s-1"}}, 1, in.Page, in.Limit), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users?limit=5&page=2&with_blocked=YES&role=secretary&search=ann", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authenticate(c, "m-1", "manager", "bogus")

	if err := NewUserHandler(stub, 0).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if got.Limit != 5 || got.Page != 2 || !got.WithBlocked {
		t.Fatalf("unexpected paging input: %+v", got)
	}
	if got.Filter.Role != domain.RoleSecretary || got.Filter.Search != "ann" {
		t.Fatalf("unexpected filter: %+v", got.Filter)
	}
	if gotActor.ID != "m-1" || len(gotActor.Roles) != 1 || gotActor.Roles[0] != domain.RoleManager {
		t.Fatalf("unexpected actor: %+v", gotActor)
	}
	if !strings.Contains(rec.Body.String(), `"current_page":2`) {
		t.Fatalf("expected page envelope, got %s", rec.Body.String())
	}
}

func TestUserHandler_List_WithBlockedDefaultsFalse(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		getAllFn: func(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error) {
			if in.WithBlocked {
				t.Fatalf("with_blocked=nope must be false")
			}
			return ports.NewPage[*domain.User](nil, 0, 1, 15), nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users?with_blocked=nope", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	authenticate(c, "m-1", "manager")

	if err := NewUserHandler(stub, 0).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestUserHandler_List_BadParams(t *testing.T) {
	for _, target := range []string{"/v1/users?role=root", "/v1/users?limit=ten", "/v1/users?page=x"} {
		t.Run(target, func(t *testing.T) {
			e := newEcho()
			stub := &stubUserService{
				getAllFn: func(ctx context.Context, actor domain.Actor, in ports.ListUsersInput) (*ports.Page[*domain.User], error) {
					t.Fatalf("service must not be called")
					return nil, nil
				},
			}
			c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
			authenticate(c, "a-1", "admin")

			err := NewUserHandler(stub, 0).List(c)
			if code := httpCode(t, err); code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
		})
	}
}

func TestUserHandler_List_Unauthenticated(t *testing.T) {
	e := newEcho()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/users", nil), httptest.NewRecorder())

	err := NewUserHandler(&stubUserService{}, 0).List(c)
	if code := httpCode(t, err); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestUserHandler_Create_JSON(t *testing.T) {
	cases := map[string]bool{
		`"on"`:   true,
		`true`:   true,
		`"1"`:    true,
		`"nope"`: false,
		`false`:  false,
	}
	for external, want := range cases {
		t.Run(external, func(t *testing.T) {
			e := newEcho()
			stub := &stubUserService{
				createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
					if in.External != want {
						t.Fatalf("external = %v, want %v", in.External, want)
					}
					if in.Name != "Ann" || in.Email != "ann@example.com" || in.Avatar != nil {
						t.Fatalf("unexpected input: %+v", in)
					}
					return &domain.User{ID: "u-9", Name: in.Name, Email: in.Email, Roles: []domain.Role{domain.RoleSecretary}}, nil
				},
			}

			body := `{"name":" Ann ","email":"ann@example.com","password":"password1","external":` + external + `}`
			req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			authenticate(c, "m-1", "manager")

			if err := NewUserHandler(stub, 0).Create(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d", rec.Code)
			}
		})
	}
}

func TestUserHandler_Create_ValidationError(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(`{"name":"Ann","email":"nope"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	authenticate(c, "a-1", "admin")

	err := NewUserHandler(stub, 0).Create(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestUserHandler_Create_ExternalEmailOnly(t *testing.T) {
	e := newEcho()
	called := false
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			called = true
			if !in.External || in.Email != "b@x.com" || in.Name != "" || in.Password != "" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "u-3", Email: in.Email, Roles: []domain.Role{domain.RoleExternal}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(`{"external":true,"email":"b@x.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authenticate(c, "x-1", "secretary")

	if err := NewUserHandler(stub, 0).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("service was not called")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestUserHandler_Create_ShortPasswordPassesThrough(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			if in.Password != "p" {
				t.Fatalf("password = %q, want it verbatim", in.Password)
			}
			return &domain.User{ID: "u-4", Name: in.Name, Email: in.Email, Roles: []domain.Role{domain.RoleSecretary}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(`{"name":"A","email":"a@x.com","password":"p"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authenticate(c, "m-1", "manager")

	if err := NewUserHandler(stub, 0).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestUserHandler_Create_InternalNeedsName(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			t.Fatalf("service must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(`{"email":"a@x.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	authenticate(c, "a-1", "admin")

	err := NewUserHandler(stub, 0).Create(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if msg := err.(*echo.HTTPError).Message; msg != "name is required" {
		t.Fatalf("unexpected message %v", msg)
	}
}

func TestUserHandler_Create_PropagatesServiceError(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			return nil, domain.ErrUnexpectedRole
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/users", strings.NewReader(`{"name":"Ann","email":"ann@example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	authenticate(c, "s-1", "secretary")

	if err := NewUserHandler(stub, 0).Create(c); !errors.Is(err, domain.ErrUnexpectedRole) {
		t.Fatalf("expected ErrUnexpectedRole, got %v", err)
	}
}

func multipartBody(t *testing.T, fields map[string]string, avatar []byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if avatar != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="avatar"; filename="me.png"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(avatar)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUserHandler_Create_MultipartWithAvatar(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
			if !in.External {
				t.Fatalf("external form flag lost")
			}
			if in.Avatar == nil {
				t.Fatalf("avatar not attached")
			}
			if in.Avatar.FileName != "me.png" || in.Avatar.ContentType != "image/png" || in.Avatar.Size != 4 {
				t.Fatalf("unexpected avatar: %+v", in.Avatar)
			}
			data, err := io.ReadAll(in.Avatar.Content)
			if err != nil || string(data) != "\x89PNG" {
				t.Fatalf("unexpected avatar content %q (%v)", data, err)
			}
			return &domain.User{ID: "x-1", Roles: []domain.Role{domain.RoleExternal}}, nil
		},
	}

	body, ct := multipartBody(t, map[string]string{
		"name": "Ext", "email": "ext@example.com", "external": "yes",
	}, []byte("\x89PNG"), "image/png")
	req := httptest.NewRequest(http.MethodPost, "/v1/users", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authenticate(c, "s-1", "secretary")

	if err := NewUserHandler(stub, 1024).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestUserHandler_Create_AvatarRejected(t *testing.T) {
	cases := []struct {
		name        string
		avatar      []byte
		contentType string
		want        int
	}{
		{name: "too large", avatar: []byte("0123456789"), contentType: "image/png", want: http.StatusRequestEntityTooLarge},
		{name: "not an image", avatar: []byte("%PDF"), contentType: "application/pdf", want: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			stub := &stubUserService{
				createFn: func(ctx context.Context, actor domain.Actor, in ports.CreateUserInput) (*domain.User, error) {
					t.Fatalf("service must not be called")
					return nil, nil
				},
			}

			body, ct := multipartBody(t, map[string]string{"name": "A", "email": "a@example.com"}, tc.avatar, tc.contentType)
			req := httptest.NewRequest(http.MethodPost, "/v1/users", body)
			req.Header.Set(echo.HeaderContentType, ct)
			c := e.NewContext(req, httptest.NewRecorder())
			authenticate(c, "a-1", "admin")

			err := NewUserHandler(stub, 8).Create(c)
			if code := httpCode(t, err); code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestUserHandler_SetBlocked(t *testing.T) {
	e := newEcho()
	stub := &stubUserService{
		setBlockedFn: func(ctx context.Context, actor domain.Actor, id string, blocked bool) (*domain.User, error) {
			if actor.ID != "a-1" || id != "u-5" || !blocked {
				t.Fatalf("unexpected args: %+v %s %v", actor, id, blocked)
			}
			return &domain.User{ID: id, Blocked: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPatch, "/v1/users/u-5/blocked", strings.NewReader(`{"blocked":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("u-5")
	authenticate(c, "a-1", "admin")

	if err := NewUserHandler(stub, 0).SetBlocked(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserHandler_SetBlocked_MissingFlag(t *testing.T) {
	e := newEcho()
	req := httptest.NewRequest(http.MethodPatch, "/v1/users/u-5/blocked", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("u-5")
	authenticate(c, "a-1", "admin")

	err := NewUserHandler(&stubUserService{}, 0).SetBlocked(c)
	if code := httpCode(t, err); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", "on", "Yes", " yes "} {
		if !parseBool(s) {
			t.Errorf("parseBool(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "0", "false", "off", "no", "y"} {
		if parseBool(s) {
			t.Errorf("parseBool(%q) = true, want false", s)
		}
	}
}
