package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/config"
	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	universityID = "6f1c2a8e-3b4d-4c5e-8f90-1a2b3c4d5e6f"
	classroomID  = "0d9e8f7a-6b5c-4d3e-9f21-0a1b2c3d4e5f"
)

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) { return "", errors.New("keyring locked") }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.APIConfig{BaseURL: srv.URL + "/"}, staticTokens(""), zap.NewNop()), srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestUniversities_List_EnvelopeShapesAreEquivalent(t *testing.T) {
	record := `{"id":"` + universityID + `","name":"Université Paris","slug":"universite-paris","lat":"48.85","lng":2.35}`
	bodies := []struct {
		name string
		body string
	}{
		{name: "bare", body: `[` + record + `]`},
		{name: "wrapped", body: `{"universities":[` + record + `]}`},
		{name: "data", body: `{"data":[` + record + `]}`},
	}

	var results [][]domain.University
	for _, b := range bodies {
		t.Run(b.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/universities", r.URL.Path)
				writeJSON(w, http.StatusOK, b.body)
			})
			list, err := NewUniversities(c).List(context.Background())
			require.NoError(t, err)
			require.Len(t, list, 1)
			results = append(results, list)
		})
	}

	require.Len(t, results, 3)
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])

	u := results[0][0]
	assert.Equal(t, universityID, u.ID)
	require.NotNil(t, u.Coordinate)
	assert.Equal(t, 48.85, u.Coordinate.Lat)
	assert.Equal(t, 2.35, u.Coordinate.Lng)
}

func TestUniversities_List_EmptyWrappedList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"universities":[]}`)
	})
	list, err := NewUniversities(c).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUniversities_List_MissingIDFailsWholeList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"universities":[{"id":"`+universityID+`","name":"A"},{"name":"B"}]}`)
	})
	list, err := NewUniversities(c).List(context.Background())
	require.Error(t, err)
	assert.Nil(t, list)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "index 1")
}

func TestUniversities_List_UnexpectedShapeIsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	})
	_, err := NewUniversities(c).List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Equal(t, "The server returned an unexpected response", UserMessage(err))
}

func TestClassrooms_List_NormalizesLooseFields(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"classrooms":[
			{"id":42,"name":"Amphi A","capacity":"120","equipment":"[\"Projector\"]","status":"closed","lat":null,"lng":2.35,"universityId":"`+universityID+`"},
			{"id":"`+classroomID+`","name":"Salle B","capacity":30.9,"status":"maintenance","lat":"0","lng":"0","university":{"id":"`+universityID+`","name":"Université Paris"}}
		]}`)
	}))
	defer srv.Close()
	c := NewClient(config.APIConfig{BaseURL: srv.URL}, nil, zap.New(core))

	list, err := NewClassrooms(c).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	first := list[0]
	assert.Equal(t, "42", first.ID)
	assert.Equal(t, 120, first.Capacity)
	assert.Equal(t, []string{"Projector"}, first.Equipment)
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.Nil(t, first.Coordinate)
	assert.Equal(t, universityID, first.UniversityID)
	assert.NotNil(t, first.Annexes)

	second := list[1]
	assert.Equal(t, 30, second.Capacity)
	assert.Equal(t, domain.StatusMaintenance, second.Status)
	require.NotNil(t, second.Coordinate)
	assert.Equal(t, domain.Coordinate{Lat: 0, Lng: 0}, *second.Coordinate)
	assert.Equal(t, universityID, second.UniversityID)
	require.NotNil(t, second.University)
	assert.Equal(t, "Université Paris", second.University.Name)
	assert.NotNil(t, second.Equipment)

	// 非 UUID 的 id 只告警
	warned := logs.FilterMessage("Invalid UUID format for id").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "42", warned[0].ContextMap()["id"])
}

func TestClassrooms_ListByUniversity(t *testing.T) {
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		writeJSON(w, http.StatusOK, `[{"id":"`+classroomID+`","name":"Salle B"}]`)
	})
	list, err := NewClassrooms(c).ListByUniversity(context.Background(), universityID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "/api/universities/"+universityID+"/classrooms", path)

	_, err = NewClassrooms(c).ListByUniversity(context.Background(), "")
	assert.True(t, errors.Is(err, ErrPrecondition))
}

func TestClassrooms_Get(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/classrooms/" + classroomID:
			writeJSON(w, http.StatusOK, `{"classroom":{"id":"`+classroomID+`","name":"Salle B","status":"draft"}}`)
		default:
			writeJSON(w, http.StatusNotFound, `{"message":"not found"}`)
		}
	})
	g := NewClassrooms(c)

	got, ok := g.Get(context.Background(), classroomID)
	require.True(t, ok)
	assert.Equal(t, "Salle B", got.Name)
	assert.Equal(t, domain.StatusDraft, got.Status)

	got, ok = g.Get(context.Background(), "missing")
	assert.False(t, ok)
	assert.Nil(t, got)

	got, ok = g.Get(context.Background(), "")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestClassrooms_Create_SendsMultipartForm(t *testing.T) {
	var (
		method string
		path   string
		values map[string][]string
		files  []string
		image  string
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		values = r.MultipartForm.Value
		for k := range r.MultipartForm.File {
			files = append(files, k)
		}
		if fh, ok := r.MultipartForm.File["main_image"]; ok {
			f, err := fh[0].Open()
			require.NoError(t, err)
			b, _ := io.ReadAll(f)
			_ = f.Close()
			image = string(b)
		}
		writeJSON(w, http.StatusCreated, `{"classroom":{"id":"`+classroomID+`","name":"Amphi A","slug":"amphi-a","capacity":0,"status":"draft"}}`)
	})

	p := domain.NewClassroomPayload()
	p.Name = "  Amphi A "
	p.Slug = "something-else"
	p.Capacity = -5
	p.UniversityID = universityID
	p.Coordinate = &domain.Coordinate{Lat: 0, Lng: 2.35}
	p.AddEquipment("Projector")
	p.AddEquipment("Whiteboard")
	main := domain.FileImage("front.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	p.MainImage = &main
	p.Annexes = []domain.ImageRef{
		domain.URLImage("https://cdn.example.com/old.jpg"),
		domain.FileImage("plan.png", "image/png", strings.NewReader("png-bytes")),
	}

	created, err := NewClassrooms(c).Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, classroomID, created.ID)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/classrooms", path)
	assert.Equal(t, []string{"Amphi A"}, values["name"])
	assert.Equal(t, []string{"amphi-a"}, values["slug"])
	assert.Equal(t, []string{"0"}, values["lat"])
	assert.Equal(t, []string{"2.35"}, values["lng"])
	assert.Equal(t, []string{universityID}, values["university_id"])
	assert.Equal(t, []string{"0"}, values["capacity"])
	assert.Equal(t, []string{"draft"}, values["status"])
	assert.Equal(t, []string{"Projector"}, values["equipment[0]"])
	assert.Equal(t, []string{"Whiteboard"}, values["equipment[1]"])
	assert.NotContains(t, values, "_method")
	assert.NotContains(t, values, "description")

	assert.ElementsMatch(t, []string{"main_image", "annexes[1]"}, files)
	assert.Equal(t, "jpeg-bytes", image)
}

func TestClassrooms_Update_UsesMethodOverride(t *testing.T) {
	var (
		method   string
		path     string
		override string
		files    int
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		override = r.MultipartForm.Value["_method"][0]
		files = len(r.MultipartForm.File)
		writeJSON(w, http.StatusOK, `{"id":"`+classroomID+`","name":"Amphi A","status":"active"}`)
	})

	p := domain.ClassroomPayloadFrom(domain.Classroom{
		ID:        classroomID,
		Name:      "Amphi A",
		Status:    domain.StatusActive,
		MainImage: "https://cdn.example.com/front.jpg",
		Annexes:   []string{"https://cdn.example.com/a.jpg"},
	})
	updated, err := NewClassrooms(c).Update(context.Background(), classroomID, p)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, updated.Status)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/classrooms/"+classroomID, path)
	assert.Equal(t, "PUT", override)
	assert.Zero(t, files, "url images are never re-uploaded")
}

func TestClassrooms_Update_Preconditions(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	g := NewClassrooms(c)

	_, err := g.Update(context.Background(), "", domain.ClassroomPayload{Name: "A"})
	assert.True(t, errors.Is(err, ErrPrecondition))

	_, err = g.Create(context.Background(), domain.ClassroomPayload{Name: "   "})
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.True(t, errors.Is(err, domain.ErrInvalidPayload))

	_, err = g.Create(context.Background(), domain.ClassroomPayload{Name: "A", Status: "archived"})
	assert.True(t, errors.Is(err, domain.ErrInvalidPayload))

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestUniversities_Create_FormFields(t *testing.T) {
	var values map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		values = r.MultipartForm.Value
		writeJSON(w, http.StatusCreated, `{"university":{"id":"`+universityID+`","name":"Université Paris","slug":"universite-paris"}}`)
	})

	u, err := NewUniversities(c).Create(context.Background(), domain.UniversityPayload{
		Name:    "Université Paris",
		Address: " 1 rue de la Paix ",
	})
	require.NoError(t, err)
	assert.Equal(t, "universite-paris", u.Slug)

	assert.Equal(t, []string{"universite-paris"}, values["slug"])
	assert.Equal(t, []string{"1 rue de la Paix"}, values["address"])
	assert.NotContains(t, values, "lat")
	assert.NotContains(t, values, "lng")
}

func TestDelete(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/api/classrooms/" + classroomID:
			w.WriteHeader(http.StatusNoContent)
		case "/api/classrooms/gone":
			writeJSON(w, http.StatusNotFound, `{"message":"not found"}`)
		case "/api/classrooms/locked":
			writeJSON(w, http.StatusForbidden, `{"message":"forbidden"}`)
		default:
			writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
		}
	})
	g := NewClassrooms(c)

	require.NoError(t, g.Delete(context.Background(), classroomID))

	err := g.Delete(context.Background(), "gone")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "The requested item was not found or has already been deleted", UserMessage(err))

	err = g.Delete(context.Background(), "locked")
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Equal(t, "You do not have permission to perform this action", UserMessage(err))

	err = g.Delete(context.Background(), "other")
	assert.Equal(t, KindServer, KindOf(err))
	assert.Equal(t, "Server error, please try again later", UserMessage(err))

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	err = g.Delete(context.Background(), "")
	assert.True(t, errors.Is(err, ErrPrecondition))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "no request without an id")
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, `[]`)
	}))
	defer srv.Close()

	c := NewClient(config.APIConfig{BaseURL: srv.URL}, staticTokens("tok-123"), zap.NewNop())
	_, err := NewUniversities(c).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", auth)

	c = NewClient(config.APIConfig{BaseURL: srv.URL}, staticTokens(""), zap.NewNop())
	_, err = NewUniversities(c).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)

	c = NewClient(config.APIConfig{BaseURL: srv.URL}, failingTokens{}, zap.NewNop())
	_, err = NewUniversities(c).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClient_UnauthorizedIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"Unauthenticated."}`)
	}))
	defer srv.Close()

	c := NewClient(config.APIConfig{BaseURL: srv.URL}, staticTokens("stale"), zap.New(core))
	_, err := NewUniversities(c).List(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, 1, logs.FilterMessage("Unauthorized: token invalid or expired").Len())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(config.APIConfig{BaseURL: url}, nil, zap.NewNop())
	_, err := NewUniversities(c).List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, KindOther, KindOf(err))
	assert.Equal(t, "Unable to reach the server, check your connection", UserMessage(err))
}

func TestClient_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewUniversities(c).List(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "The request was cancelled or timed out", UserMessage(err))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(token)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, ok = TokenExpiry(noExp)
	assert.False(t, ok)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Request rejected by the server (status 422)", UserMessage(&StatusError{Code: 422}))
	assert.Equal(t, "Your session has expired, please sign in again", UserMessage(&StatusError{Code: 401}))
	assert.Equal(t, "The request was cancelled or timed out", UserMessage(context.DeadlineExceeded))
}

func TestUniversityClassrooms_View(t *testing.T) {
	var (
		listPath     string
		submittedUni string
	)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listPath = r.URL.Path
			writeJSON(w, http.StatusOK, `{"classrooms":[]}`)
		case http.MethodPost:
			require.NoError(t, r.ParseMultipartForm(1<<20))
			submittedUni = r.MultipartForm.Value["university_id"][0]
			writeJSON(w, http.StatusCreated, `{"id":"`+classroomID+`","name":"Amphi A"}`)
		}
	})

	view := NewClassrooms(c).ForUniversity(universityID)
	assert.Equal(t, universityID, view.UniversityID())

	list, err := view.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "/api/universities/"+universityID+"/classrooms", listPath)

	_, err = view.Create(context.Background(), domain.ClassroomPayload{Name: "Amphi A"})
	require.NoError(t, err)
	assert.Equal(t, universityID, submittedUni)
}
