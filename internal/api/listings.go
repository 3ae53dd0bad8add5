package api

import (
	"cmp"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cityshare/cityshare/internal/catalog"
	"github.com/cityshare/cityshare/internal/model"
)

// ListingsHandler handles listing endpoints.
type ListingsHandler struct {
	Catalog *catalog.Service
}

// textValue accepts a JSON string or number and keeps its text, so that
// clients may send ids and prices either way.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = textValue(n.String())
	return nil
}

func (t *textValue) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// The request types also accept the camelCase names older web clients send.

type createListingRequest struct {
	ItemName    string    `json:"item_name"`
	Description string    `json:"description"`
	Category    textValue `json:"category"`
	CategoryID  textValue `json:"category_id"`
	Type        string    `json:"type"`
	Condition   string    `json:"condition"`
	PriceCents  textValue `json:"price_cents"`
	ImageURL    string    `json:"image_url"`
	Images      []string  `json:"images"`

	ItemNameAlias   string    `json:"itemName"`
	CategoryIDAlias textValue `json:"categoryId"`
	PriceCentsAlias textValue `json:"priceCents"`
	ImageURLAlias   string    `json:"imageUrl"`
}

func (req *createListingRequest) applyAliases() {
	req.ItemName = cmp.Or(req.ItemName, req.ItemNameAlias)
	req.CategoryID = cmp.Or(req.CategoryID, req.CategoryIDAlias)
	req.PriceCents = cmp.Or(req.PriceCents, req.PriceCentsAlias)
	req.ImageURL = cmp.Or(req.ImageURL, req.ImageURLAlias)
}

type updateListingRequest struct {
	ItemName         *string    `json:"item_name"`
	Description      *string    `json:"description"`
	Category         *textValue `json:"category"`
	CategoryID       *textValue `json:"category_id"`
	Type             *string    `json:"type"`
	Condition        *string    `json:"condition"`
	PriceCents       *textValue `json:"price_cents"`
	Status           *string    `json:"status"`
	UsageStatus      *string    `json:"usage_status"`
	BorrowedByUserID *int64     `json:"borrowed_by_user_id"`

	ItemNameAlias         *string    `json:"itemName"`
	CategoryIDAlias       *textValue `json:"categoryId"`
	PriceCentsAlias       *textValue `json:"priceCents"`
	UsageStatusAlias      *string    `json:"usageStatus"`
	BorrowedByUserIDAlias *int64     `json:"borrowedByUserId"`
}

func (req *updateListingRequest) applyAliases() {
	req.ItemName = cmp.Or(req.ItemName, req.ItemNameAlias)
	req.CategoryID = cmp.Or(req.CategoryID, req.CategoryIDAlias)
	req.PriceCents = cmp.Or(req.PriceCents, req.PriceCentsAlias)
	req.UsageStatus = cmp.Or(req.UsageStatus, req.UsageStatusAlias)
	req.BorrowedByUserID = cmp.Or(req.BorrowedByUserID, req.BorrowedByUserIDAlias)
}

type addImagesRequest struct {
	Images []string `json:"images"`
}

// List handles GET /listings.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Unparseable numbers fall back to the defaults.
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	page, err := h.Catalog.ListListings(r.Context(), catalog.ListFilter{
		Query:       q.Get("q"),
		Category:    q.Get("category"),
		Kind:        q.Get("type"),
		UsageStatus: q.Get("usage_status"),
		Status:      q.Get("status"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Get handles GET /listings/{id}.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.Catalog.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Create handles POST /listings.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.applyAliases()

	category := req.CategoryID
	if category == "" {
		category = req.Category
	}

	listing, err := h.Catalog.CreateListing(r.Context(), GetUser(r.Context()), catalog.CreateListingInput{
		ItemName:    req.ItemName,
		Description: req.Description,
		Category:    string(category),
		Kind:        req.Type,
		Condition:   req.Condition,
		Price:       string(req.PriceCents),
		Images:      req.Images,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, listing)
}

// Update handles PATCH /listings/{id}.
func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.applyAliases()

	category := req.CategoryID
	if category == nil {
		category = req.Category
	}

	listing, err := h.Catalog.UpdateListing(r.Context(), GetUser(r.Context()), id, catalog.UpdateListingInput{
		ItemName:         req.ItemName,
		Description:      req.Description,
		Category:         category.ptr(),
		Kind:             req.Type,
		Condition:        req.Condition,
		Price:            req.PriceCents.ptr(),
		Status:           req.Status,
		UsageStatus:      req.UsageStatus,
		BorrowedByUserID: req.BorrowedByUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Delete handles DELETE /listings/{id}.
func (h *ListingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Catalog.DeleteListing(r.Context(), GetUser(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "listing deleted"})
}

// AddImages handles POST /listings/{id}/images.
func (h *ListingsHandler) AddImages(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req addImagesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := h.Catalog.AddListingImages(r.Context(), GetUser(r.Context()), id, req.Images)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// DeleteImage handles DELETE /listings/{id}/images/{imageID}.
func (h *ListingsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := catalog.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	imageID, err := catalog.ParseID(r.PathValue("imageID"))
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.Catalog.DeleteListingImage(r.Context(), GetUser(r.Context()), id, imageID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Owned handles GET /profile/listings.
func (h *ListingsHandler) Owned(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Catalog.ListOwnedListings(r.Context(), GetUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string][]model.Listing{"listings": listings})
}

// Categories handles GET /categories.
func (h *ListingsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string][]model.Category{"categories": categories})
}
