package usecase

import (
	"errors"
	"fmt"

	categoryrepo "mailsift-backend/internal/category/repository"
	emaildomain "mailsift-backend/internal/email/domain"
	"mailsift-backend/internal/email/repository"
)

// EmailUsecase defines the interface for email read and update operations
type EmailUsecase interface {
	ListEmails(userID string, limit, offset int) ([]*emaildomain.Email, int64, error)
	GetEmailByID(userID, id string) (*emaildomain.Email, error)
	SetReadState(userID, id string, read bool) error
	SetCategories(userID, id string, categoryIDs []string) error
}

type emailUsecase struct {
	emailRepo    repository.EmailRepository
	categoryRepo categoryrepo.CategoryRepository
}

func NewEmailUsecase(emailRepo repository.EmailRepository, categoryRepo categoryrepo.CategoryRepository) EmailUsecase {
	return &emailUsecase{
		emailRepo:    emailRepo,
		categoryRepo: categoryRepo,
	}
}

func (u *emailUsecase) ListEmails(userID string, limit, offset int) ([]*emaildomain.Email, int64, error) {
	return u.emailRepo.ListByAccount(userID, limit, offset)
}

func (u *emailUsecase) GetEmailByID(userID, id string) (*emaildomain.Email, error) {
	return u.emailRepo.GetByID(userID, id)
}

// SetReadState flips the local flag only. The change reaches the remote
// mailbox on the next sync cycle's push phase.
func (u *emailUsecase) SetReadState(userID, id string, read bool) error {
	email, err := u.emailRepo.GetByID(userID, id)
	if err != nil {
		return err
	}
	if email == nil {
		return errors.New("email not found")
	}

	return u.emailRepo.SetReadState(userID, id, read)
}

// SetCategories replaces the email's category assignment. Every id must
// reference one of the user's own categories.
func (u *emailUsecase) SetCategories(userID, id string, categoryIDs []string) error {
	email, err := u.emailRepo.GetByID(userID, id)
	if err != nil {
		return err
	}
	if email == nil {
		return errors.New("email not found")
	}

	for _, categoryID := range categoryIDs {
		category, err := u.categoryRepo.FindByID(userID, categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return fmt.Errorf("category %s not found", categoryID)
		}
	}

	return u.emailRepo.SetCategories(userID, id, categoryIDs)
}
