package user

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/user-management-backend/internal/imagestore"
)

// passGuard stands in for the CSRF middleware in handler tests; the real
// middleware is covered in the csrf package.
func passGuard(c *fiber.Ctx) error { return c.Next() }

func newTestApp(seed []User) (*fiber.App, *InMemoryRepository, *imagestore.MemStore) {
	repo := NewInMemoryRepository(seed)
	images := imagestore.NewMemStore()
	handler := NewHandler(NewService(repo, images))

	app := fiber.New()
	handler.Register(app, passGuard)
	return app, repo, images
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type listBody struct {
	Success    bool   `json:"success"`
	Data       []User `json:"data"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var body T
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return body
}

func userForm(t *testing.T, fields map[string]string, imageName string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if imageName != "" {
		fw, err := w.CreateFormFile("profile_image", imageName)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake image bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestInvalidAction(t *testing.T) {
	app, _, _ := newTestApp(nil)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid action", body.Message)
}

func TestFetchAll(t *testing.T) {
	seed := make([]User, 0, 12)
	for i := 1; i <= 12; i++ {
		seed = append(seed, User{ID: i, Name: "User", Email: "u@example.com", Phone: "1234567890", Gender: GenderMale})
	}
	app, _, _ := newTestApp(seed)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=fetch_all&page=2&limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[listBody](t, res)
	assert.True(t, body.Success)
	assert.Equal(t, 12, body.Total)
	assert.Equal(t, 3, body.TotalPages)
	assert.Equal(t, 2, body.Page)
	assert.Len(t, body.Data, 5)
}

func TestFetchAll_EmptyPageBeyondRange(t *testing.T) {
	seed := []User{{ID: 1, Name: "Ann", Email: "ann@example.com", Phone: "1234567890", Gender: GenderFemale}}
	app, _, _ := newTestApp(seed)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=fetch_all&page=9", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[listBody](t, res)
	assert.True(t, body.Success)
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
	assert.Equal(t, 1, body.Total)
}

func TestFetchOne(t *testing.T) {
	img := "abc.jpg"
	seed := []User{{ID: 7, Name: "Ann", Email: "ann@example.com", Phone: "1234567890", Gender: GenderFemale, ProfileImage: &img}}
	app, _, _ := newTestApp(seed)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=fetch_one&id=7", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	require.True(t, body.Success)

	var u User
	require.NoError(t, json.Unmarshal(body.Data, &u))
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, "Ann", u.Name)
	require.NotNil(t, u.ProfileImage)
	assert.Equal(t, "abc.jpg", *u.ProfileImage)
}

func TestFetchOne_NotFound(t *testing.T) {
	app, _, _ := newTestApp(nil)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=fetch_one&id=99", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.False(t, body.Success)
	assert.Equal(t, "Not found", body.Message)
	assert.Nil(t, body.Data, "a miss must not leak any row data")
}

func TestFetchOne_MissingID(t *testing.T) {
	app, _, _ := newTestApp(nil)

	res, err := app.Test(httptest.NewRequest("GET", "/api/actions?action=fetch_one", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}

func TestCreate(t *testing.T) {
	app, repo, _ := newTestApp(nil)

	form, contentType := userForm(t, map[string]string{
		"name": "Ann Lee", "email": "ann@example.com", "phone": "1234567890", "gender": "Female",
	}, "")
	req := httptest.NewRequest("POST", "/api/actions?action=create", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.True(t, body.Success)
	assert.Equal(t, "User created", body.Message)

	rows, total, _ := repo.List(context.Background(), ListParams{Page: 1, Limit: 10})
	require.Equal(t, 1, total)
	assert.Equal(t, "Ann Lee", rows[0].Name)
	assert.Nil(t, rows[0].ProfileImage)
}

func TestCreate_WithImage(t *testing.T) {
	app, repo, images := newTestApp(nil)

	form, contentType := userForm(t, map[string]string{
		"name": "Ann Lee", "email": "ann@example.com", "phone": "1234567890", "gender": "Female",
	}, "photo.png")
	req := httptest.NewRequest("POST", "/api/actions?action=create", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	rows, _, _ := repo.List(context.Background(), ListParams{Page: 1, Limit: 10})
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ProfileImage)
	assert.True(t, strings.HasSuffix(*rows[0].ProfileImage, ".png"))
	assert.Equal(t, 1, images.Len())
}

func TestCreate_ValidationError(t *testing.T) {
	app, repo, _ := newTestApp(nil)

	form, contentType := userForm(t, map[string]string{
		"name": "", "email": "ann@example.com", "phone": "1234567890", "gender": "Female",
	}, "")
	req := httptest.NewRequest("POST", "/api/actions?action=create", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.False(t, body.Success)
	assert.Equal(t, "All fields required", body.Message)

	_, total, _ := repo.List(context.Background(), ListParams{Page: 1, Limit: 10})
	assert.Zero(t, total)
}

func TestCreate_DuplicateEmailConflict(t *testing.T) {
	seed := []User{{ID: 1, Name: "Ann", Email: "ann@example.com", Phone: "1234567890", Gender: GenderFemale}}
	app, _, _ := newTestApp(seed)

	form, contentType := userForm(t, map[string]string{
		"name": "Other", "email": "ann@example.com", "phone": "1234567890", "gender": "Male",
	}, "")
	req := httptest.NewRequest("POST", "/api/actions?action=create", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.Equal(t, "Email exists", body.Message)
}

func TestCreate_BadImageExtension(t *testing.T) {
	app, _, _ := newTestApp(nil)

	form, contentType := userForm(t, map[string]string{
		"name": "Ann", "email": "ann@example.com", "phone": "1234567890", "gender": "Female",
	}, "photo.gif")
	req := httptest.NewRequest("POST", "/api/actions?action=create", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.Equal(t, "Only JPG/PNG allowed", body.Message)
}

func TestUpdate(t *testing.T) {
	seed := []User{{ID: 3, Name: "Ann Lee", Email: "ann@example.com", Phone: "1234567890", Gender: GenderFemale}}
	app, repo, _ := newTestApp(seed)

	form, contentType := userForm(t, map[string]string{
		"id": "3", "name": "Ann K. Lee", "email": "ann@example.com", "phone": "1234567890",
		"gender": "Female", "remove_image": "0",
	}, "")
	req := httptest.NewRequest("POST", "/api/actions?action=update", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.True(t, body.Success)
	assert.Equal(t, "Updated successfully", body.Message)

	u, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Ann K. Lee", u.Name)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, GenderFemale, u.Gender)
}

func TestUpdate_MissingID(t *testing.T) {
	app, _, _ := newTestApp(nil)

	form, contentType := userForm(t, map[string]string{
		"name": "Ann", "email": "ann@example.com", "phone": "1234567890", "gender": "Female",
	}, "")
	req := httptest.NewRequest("POST", "/api/actions?action=update", form)
	req.Header.Set("Content-Type", contentType)

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.Equal(t, "No ID", body.Message)
}

func TestDelete(t *testing.T) {
	seed := []User{{ID: 5, Name: "Ann", Email: "ann@example.com", Phone: "1234567890", Gender: GenderFemale}}
	app, repo, _ := newTestApp(seed)

	req := httptest.NewRequest("POST", "/api/actions?action=delete", strings.NewReader(`{"id":5}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.True(t, body.Success)
	assert.Equal(t, "Deleted", body.Message)

	_, err = repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Miss(t *testing.T) {
	app, _, _ := newTestApp(nil)

	req := httptest.NewRequest("POST", "/api/actions?action=delete", strings.NewReader(`{"id":42}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)

	body := decodeBody[envelopeBody](t, res)
	assert.False(t, body.Success)
	assert.Equal(t, "Delete failed", body.Message)
}

func TestDelete_InvalidBody(t *testing.T) {
	app, _, _ := newTestApp(nil)

	req := httptest.NewRequest("POST", "/api/actions?action=delete", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}
