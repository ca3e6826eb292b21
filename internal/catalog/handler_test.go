package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	packages   map[uuid.UUID]Package
	categories []Category

	lastLimit, lastOffset int
	created               []PackageInput
	createErr             error
}

func newFakeStore() *fakeStore {
	return &fakeStore{packages: map[uuid.UUID]Package{}}
}

func (f *fakeStore) ListActive(_ context.Context, limit, offset int) (PackagePage, error) {
	f.lastLimit, f.lastOffset = limit, offset
	page := PackagePage{Packages: []Package{}}
	for _, p := range f.packages {
		if p.IsActive {
			page.Packages = append(page.Packages, p)
		}
	}
	page.Total = len(page.Packages)
	return page, nil
}

func (f *fakeStore) ListFeatured(_ context.Context, limit int) ([]Package, error) {
	f.lastLimit = limit
	return []Package{}, nil
}

func (f *fakeStore) ListByCategory(_ context.Context, _ uuid.UUID, limit, offset int) ([]Package, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return []Package{}, nil
}

func (f *fakeStore) GetActive(_ context.Context, id uuid.UUID) (Package, error) {
	p, ok := f.packages[id]
	if !ok || !p.IsActive {
		return Package{}, ErrPackageNotFound
	}
	return p, nil
}

func (f *fakeStore) Create(_ context.Context, input PackageInput) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	f.created = append(f.created, input)
	return uuid.New(), nil
}

func (f *fakeStore) Update(_ context.Context, id uuid.UUID, _ PackageInput) error {
	if _, ok := f.packages[id]; !ok {
		return ErrPackageNotFound
	}
	return nil
}

func (f *fakeStore) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := f.packages[id]
	if !ok {
		return ErrPackageNotFound
	}
	p.IsActive = false
	f.packages[id] = p
	return nil
}

func (f *fakeStore) ListCategories(_ context.Context) ([]Category, error) {
	return f.categories, nil
}

func (f *fakeStore) CreateCategory(_ context.Context, input CategoryInput) (Category, error) {
	for _, c := range f.categories {
		if c.Name == input.Name {
			return Category{}, ErrCategoryExists
		}
	}
	c := Category{ID: uuid.New(), Name: input.Name}
	f.categories = append(f.categories, c)
	return c, nil
}

func newCatalogMux(store Store) *http.ServeMux {
	h := NewHandler(store)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/packages", h.ListPackages)
	mux.HandleFunc("GET /api/packages/featured", h.FeaturedPackages)
	mux.HandleFunc("GET /api/packages/{id}", h.GetPackage)
	mux.HandleFunc("GET /api/packages/category/{category_id}", h.PackagesByCategory)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("POST /api/admin/packages", h.CreatePackage)
	mux.HandleFunc("PUT /api/admin/packages/{id}", h.UpdatePackage)
	mux.HandleFunc("DELETE /api/admin/packages/{id}", h.DeletePackage)
	mux.HandleFunc("POST /api/admin/categories", h.CreateCategory)
	return mux
}

func call(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestListPackages_Pagination(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{query: "", wantLimit: 20, wantOffset: 0},
		{query: "?limit=5&offset=10", wantLimit: 5, wantOffset: 10},
		{query: "?limit=1000", wantLimit: 100},
		{query: "?limit=0", wantLimit: 1},
		{query: "?limit=-3&offset=-7", wantLimit: 1, wantOffset: 0},
		{query: "?limit=abc&offset=xyz", wantLimit: 20, wantOffset: 0},
	}

	for _, tc := range cases {
		store := newFakeStore()
		rec := call(newCatalogMux(store), http.MethodGet, "/api/packages"+tc.query, "")
		require.Equal(t, http.StatusOK, rec.Code, tc.query)
		assert.Equal(t, tc.wantLimit, store.lastLimit, tc.query)
		assert.Equal(t, tc.wantOffset, store.lastOffset, tc.query)
	}
}

func TestListPackages_ResponseShape(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	id := uuid.New()
	store.packages[id] = Package{ID: id, Title: "Kerala Backwaters", IsActive: true, Highlights: []string{"houseboat"}}

	rec := call(newCatalogMux(store), http.MethodGet, "/api/packages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Packages []map[string]any `json:"packages"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Packages, 1)
	assert.Equal(t, "Kerala Backwaters", page.Packages[0]["title"])
	assert.NotContains(t, page.Packages[0], "is_active")
}

func TestFeaturedPackages_LimitedToSix(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := call(newCatalogMux(store), http.MethodGet, "/api/packages/featured", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, store.lastLimit)
}

func TestGetPackage(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	active, hidden := uuid.New(), uuid.New()
	store.packages[active] = Package{ID: active, Title: "Goa", IsActive: true}
	store.packages[hidden] = Package{ID: hidden, Title: "Old", IsActive: false}
	mux := newCatalogMux(store)

	assert.Equal(t, http.StatusOK, call(mux, http.MethodGet, "/api/packages/"+active.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, call(mux, http.MethodGet, "/api/packages/"+hidden.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, call(mux, http.MethodGet, "/api/packages/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusBadRequest, call(mux, http.MethodGet, "/api/packages/not-a-uuid", "").Code)
}

func TestPackagesByCategory(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mux := newCatalogMux(store)

	rec := call(mux, http.MethodGet, "/api/packages/category/"+uuid.NewString()+"?limit=500&offset=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, store.lastLimit)
	assert.Equal(t, 3, store.lastOffset)

	assert.Equal(t, http.StatusBadRequest, call(mux, http.MethodGet, "/api/packages/category/oops", "").Code)
}

func TestCreatePackage_Validation(t *testing.T) {
	t.Parallel()

	categoryID := uuid.NewString()
	valid := `{"title":"Rajasthan Forts","description":"Seven days across the desert forts","price":45000,` +
		`"duration_days":7,"max_people":12,"category_id":"` + categoryID + `","highlights":["Amber Fort"],` +
		`"inclusions":[],"exclusions":[],"itinerary":[{"day":1}],"image_url":"https://cdn.example.com/forts.jpg"}`

	store := newFakeStore()
	mux := newCatalogMux(store)

	rec := call(mux, http.MethodPost, "/api/admin/packages", valid)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, store.created, 1)
	assert.Equal(t, "Rajasthan Forts", store.created[0].Title)

	invalid := map[string]string{
		"short description": strings.Replace(valid, "Seven days across the desert forts", "short", 1),
		"zero price":        strings.Replace(valid, `"price":45000`, `"price":0`, 1),
		"price over cap":    strings.Replace(valid, `"price":45000`, `"price":10000001`, 1),
		"group over cap":    strings.Replace(valid, `"max_people":12`, `"max_people":201`, 1),
		"bad category":      strings.Replace(valid, categoryID, "nope", 1),
		"ftp image":         strings.Replace(valid, "https://cdn", "ftp://cdn", 1),
		"unknown field":     strings.Replace(valid, `"title"`, `"slug":"x","title"`, 1),
	}
	for name, body := range invalid {
		rec := call(mux, http.MethodPost, "/api/admin/packages", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	store.createErr = ErrCategoryNotFound
	assert.Equal(t, http.StatusBadRequest, call(mux, http.MethodPost, "/api/admin/packages", valid).Code)
}

func TestDeletePackage_SoftDeletes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	id := uuid.New()
	store.packages[id] = Package{ID: id, IsActive: true}
	mux := newCatalogMux(store)

	assert.Equal(t, http.StatusOK, call(mux, http.MethodDelete, "/api/admin/packages/"+id.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, call(mux, http.MethodGet, "/api/packages/"+id.String(), "").Code)
	assert.Contains(t, store.packages, id)
	assert.Equal(t, http.StatusNotFound, call(mux, http.MethodDelete, "/api/admin/packages/"+uuid.NewString(), "").Code)
}

func TestCreateCategory(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mux := newCatalogMux(store)

	assert.Equal(t, http.StatusCreated, call(mux, http.MethodPost, "/api/admin/categories", `{"name":"Domestic"}`).Code)
	assert.Equal(t, http.StatusConflict, call(mux, http.MethodPost, "/api/admin/categories", `{"name":"Domestic"}`).Code)
	assert.Equal(t, http.StatusBadRequest, call(mux, http.MethodPost, "/api/admin/categories", `{"name":"  "}`).Code)

	rec := call(mux, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"package_count":0`)
}
