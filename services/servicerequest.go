package services

import (
	"errors"
	"fmt"

	"github.com/avent-visseho/lokahome-api/errs"
	"github.com/avent-visseho/lokahome-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceRequestService manages home service requests and their quotes.
// The flow mirrors bookings: a request collects quotes, the requester
// accepts one, the accepted quote becomes payable.
type ServiceRequestService struct {
	db *gorm.DB
}

func NewServiceRequestService(db *gorm.DB) *ServiceRequestService {
	return &ServiceRequestService{db: db}
}

func (s *ServiceRequestService) Get(id uint) (*models.ServiceRequest, error) {
	var request models.ServiceRequest
	err := s.db.Preload("Quotes").Preload("Quotes.Provider").First(&request, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("service request %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *ServiceRequestService) Create(requester *models.User, title, description string) (*models.ServiceRequest, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", errs.ErrValidation)
	}

	request := &models.ServiceRequest{
		RequesterID: requester.ID,
		Title:       title,
		Description: description,
		Status:      models.ServiceRequestStatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		reference, err := generateUniqueReference(tx, &models.ServiceRequest{}, "SR", 8)
		if err != nil {
			return err
		}
		request.Reference = reference
		return tx.Create(request).Error
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// SubmitQuote lets a verified provider answer an open request.
func (s *ServiceRequestService) SubmitQuote(requestID uint, provider *models.User, amount decimal.Decimal, message string) (*models.ServiceQuote, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quote amount must be positive: %w", errs.ErrValidation)
	}

	request, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ServiceRequestStatusPending && request.Status != models.ServiceRequestStatusQuoted {
		return nil, fmt.Errorf("request is no longer accepting quotes: %w", errs.ErrBusinessRule)
	}
	if request.RequesterID == provider.ID {
		return nil, fmt.Errorf("you cannot quote your own request: %w", errs.ErrBusinessRule)
	}

	var providerProfile models.ServiceProvider
	err = s.db.Where("user_id = ?", provider.ID).First(&providerProfile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("only registered providers can quote: %w", errs.ErrForbidden)
	}
	if err != nil {
		return nil, err
	}

	quote := &models.ServiceQuote{
		ServiceRequestID: request.ID,
		ProviderID:       providerProfile.ID,
		Amount:           amount,
		Currency:         "XOF",
		Message:          message,
		Status:           models.QuoteStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quote).Error; err != nil {
			return err
		}
		if request.Status == models.ServiceRequestStatusPending {
			return tx.Model(request).Update("status", models.ServiceRequestStatusQuoted).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// AcceptQuote picks the winning quote. Every other pending quote on the
// request is rejected in the same transaction.
func (s *ServiceRequestService) AcceptQuote(requestID, quoteID uint, requester *models.User) (*models.ServiceRequest, error) {
	request, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != requester.ID {
		return nil, fmt.Errorf("only the requester can accept a quote: %w", errs.ErrForbidden)
	}
	if request.Status != models.ServiceRequestStatusQuoted {
		return nil, fmt.Errorf("request has no acceptable quotes: %w", errs.ErrBusinessRule)
	}

	var quote models.ServiceQuote
	err = s.db.Where("id = ? AND service_request_id = ?", quoteID, request.ID).First(&quote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("quote %d: %w", quoteID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusPending {
		return nil, fmt.Errorf("quote is no longer pending: %w", errs.ErrBusinessRule)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&quote).Update("status", models.QuoteStatusAccepted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ServiceQuote{}).
			Where("service_request_id = ? AND id <> ? AND status = ?", request.ID, quote.ID, models.QuoteStatusPending).
			Update("status", models.QuoteStatusRejected).Error; err != nil {
			return err
		}
		return tx.Model(request).Updates(map[string]interface{}{
			"status":            models.ServiceRequestStatusAccepted,
			"accepted_quote_id": quote.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(request.ID)
}

func (s *ServiceRequestService) ListForRequester(requesterID uint, status string) ([]models.ServiceRequest, error) {
	query := s.db.Preload("Quotes").Where("requester_id = ?", requesterID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.ServiceRequest
	if err := query.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// ListOpen returns requests a provider can still quote on.
func (s *ServiceRequestService) ListOpen() ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	err := s.db.
		Where("status IN ?", []string{models.ServiceRequestStatusPending, models.ServiceRequestStatusQuoted}).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// RegisterProvider creates the provider profile for a user.
func (s *ServiceRequestService) RegisterProvider(user *models.User, businessName, category string) (*models.ServiceProvider, error) {
	var existing models.ServiceProvider
	err := s.db.Where("user_id = ?", user.ID).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("provider profile already exists: %w", errs.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	provider := &models.ServiceProvider{
		UserID:       user.ID,
		BusinessName: businessName,
		Category:     category,
	}
	if err := s.db.Create(provider).Error; err != nil {
		return nil, err
	}

	if user.Role == models.RoleTenant {
		if err := s.db.Model(user).Update("role", models.RoleProvider).Error; err != nil {
			return nil, err
		}
	}
	return provider, nil
}
