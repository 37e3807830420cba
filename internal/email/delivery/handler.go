package delivery

import (
	"errors"
	"net/http"
	"strconv"

	categorydomain "mailsift-backend/internal/category/domain"
	categoryrepo "mailsift-backend/internal/category/repository"
	emaildomain "mailsift-backend/internal/email/domain"
	emaildto "mailsift-backend/internal/email/dto"
	"mailsift-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
	syncService  *usecase.SyncService
	categoryRepo categoryrepo.CategoryRepository
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase, syncService *usecase.SyncService, categoryRepo categoryrepo.CategoryRepository) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
		syncService:  syncService,
		categoryRepo: categoryRepo,
	}
}

func (h *EmailHandler) ListEmails(c *gin.Context) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	emails, total, err := h.emailUsecase.ListEmails(c.GetString("userID"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]emaildto.EmailSummary, 0, len(emails))
	for _, email := range emails {
		summaries = append(summaries, emaildto.NewEmailSummary(email))
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{
		Emails: summaries,
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	email, err := h.emailUsecase.GetEmailByID(c.GetString("userID"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if email == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}

	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) SetReadState(c *gin.Context) {
	var req emaildto.ReadStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.SetReadState(c.GetString("userID"), c.Param("id"), *req.IsRead); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "read state updated"})
}

func (h *EmailHandler) SetCategories(c *gin.Context) {
	var req emaildto.CategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emailUsecase.SetCategories(c.GetString("userID"), c.Param("id"), req.CategoryIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "categories updated"})
}

// TriggerSync enqueues a manual sync job and returns the job handle. The
// client polls GET /sync/jobs/:id for completion.
func (h *EmailHandler) TriggerSync(c *gin.Context) {
	var req emaildto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.syncService.TriggerFetch(c.GetString("userID"), req.FullSync)
	if err != nil {
		if errors.Is(err, emaildomain.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *EmailHandler) GetSyncJob(c *gin.Context) {
	job := h.syncService.GetJob(c.Param("id"))
	if job == nil || job.AccountID != c.GetString("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *EmailHandler) GetSyncStatus(c *gin.Context) {
	status, err := h.syncService.GetSyncStatus(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *EmailHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryRepo.FindByUser(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *EmailHandler) CreateCategory(c *gin.Context) {
	var category categorydomain.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if category.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	category.ID = ""
	category.UserID = c.GetString("userID")

	if err := h.categoryRepo.Create(&category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *EmailHandler) UpdateCategory(c *gin.Context) {
	userID := c.GetString("userID")

	existing, err := h.categoryRepo.FindByID(userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return
	}

	var update categorydomain.Category
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.Color != "" {
		existing.Color = update.Color
	}
	if update.Keywords != nil {
		existing.Keywords = update.Keywords
	}

	if err := h.categoryRepo.Update(existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, existing)
}

func (h *EmailHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryRepo.Delete(c.GetString("userID"), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
