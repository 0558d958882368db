package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/iyhunko/dapp-marketplace/internal/http/middleware"
	"github.com/iyhunko/dapp-marketplace/internal/http/views"
	"github.com/iyhunko/dapp-marketplace/internal/model"
	"github.com/iyhunko/dapp-marketplace/internal/service"
)

// MaxImageSize is the largest image accepted with a new product.
const MaxImageSize = 10 << 20

var (
	// ErrNotAnImage is returned when the uploaded file is not an image.
	ErrNotAnImage = errors.New("uploaded file is not an image")
	// ErrImageTooLarge is returned when the uploaded file exceeds MaxImageSize.
	ErrImageTooLarge = errors.New("uploaded image is too large")
)

// ProductController handles HTTP requests for product operations.
type ProductController struct{}

// NewProductController creates a new ProductController.
func NewProductController() *ProductController {
	return &ProductController{}
}

// CreateProductForm is the multipart form posted by the page.
type CreateProductForm struct {
	Name        string `form:"name" binding:"required"`
	Description string `form:"description" binding:"required"`
	Price       string `form:"price" binding:"required"`
}

// CreateProductRequest represents the request body for creating a product.
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Price       string `json:"price" binding:"required"`
}

// ListProductsResponse represents the response body for listing products.
type ListProductsResponse struct {
	Products []model.Product `json:"products"`
}

// CreateProductResponse represents the response body for a confirmed creation.
type CreateProductResponse struct {
	service.CreateResult
	Products []model.Product `json:"products"`
}

// Index renders the marketplace page for the caller's session.
func (pc *ProductController) Index(c *gin.Context) {
	w := middleware.CurrentWorkspace(c)
	c.HTML(http.StatusOK, views.IndexPage, views.Page{
		Account:  w.Session.Account(),
		Flashes:  takeFlashes(c),
		Draft:    w.Workflow.Draft(),
		Loading:  w.Workflow.Loading(),
		Products: w.Workflow.Products(),
	})
}

// Create handles the form POST for a new product. Incomplete forms never reach the workflow.
func (pc *ProductController) Create(c *gin.Context) {
	defer redirectHome(c)
	w := middleware.CurrentWorkspace(c)

	var form CreateProductForm
	if err := c.ShouldBind(&form); err != nil {
		_ = c.Error(err)
		w.Workflow.SetDraft(model.Draft{Name: c.PostForm("name"), Description: c.PostForm("description"), Price: c.PostForm("price")})
		addFlash(c, service.UserMessage(service.ErrInvalidDraft))
		return
	}
	draft := model.Draft{Name: form.Name, Description: form.Description, Price: form.Price}

	image, err := readImage(c)
	if err != nil {
		_ = c.Error(err)
		w.Workflow.SetDraft(draft)
		addFlash(c, imageMessage(err))
		return
	}
	draft.Image = image

	// the transaction outlives a closed tab, so the creation is not tied to the request
	if _, err := w.Workflow.CreateProduct(context.WithoutCancel(c.Request.Context()), draft); err != nil {
		_ = c.Error(err)
		if !errors.Is(err, service.ErrCreateInProgress) {
			w.Workflow.SetDraft(draft)
		}
		addFlash(c, service.UserMessage(err))
	}
}

// List handles the HTTP GET request that reloads and returns every product.
func (pc *ProductController) List(c *gin.Context) {
	w := middleware.CurrentWorkspace(c)
	if err := w.Workflow.LoadProducts(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListProductsResponse{Products: nonNil(w.Workflow.Products())})
}

// APICreate handles the HTTP POST request for creating a new product.
func (pc *ProductController) APICreate(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", service.ErrInvalidDraft, err))
		return
	}

	w := middleware.CurrentWorkspace(c)
	result, err := w.Workflow.CreateProduct(context.WithoutCancel(c.Request.Context()), model.Draft{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateProductResponse{
		CreateResult: *result,
		Products:     nonNil(w.Workflow.Products()),
	})
}

func readImage(c *gin.Context) (*model.Image, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if header.Size > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}

	return &model.Image{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func imageMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotAnImage):
		return "Please choose an image file"
	case errors.Is(err, ErrImageTooLarge):
		return "The image is too large"
	default:
		return "Could not read the image. Please try again."
	}
}

func nonNil(products []model.Product) []model.Product {
	if products == nil {
		return []model.Product{}
	}
	return products
}
