package registrations

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Registration, error) {
	var reg Registration
	if err := r.db.WithContext(ctx).First(&reg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, err
	}
	return reg, nil
}

type ListByUserParams struct {
	UserID   string
	Email    string // also include guest registrations made with this address
	Page     int
	PageSize int
}

type ListResult struct {
	Items []Registration
	Total int64
}

func (r *Repo) ListByUser(ctx context.Context, in ListByUserParams) (ListResult, error) {
	page, size := pageBounds(in.Page, in.PageSize, 20)

	q := r.db.WithContext(ctx).Model(&Registration{})
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		q = q.Where("user_id = ? OR (user_id IS NULL AND contact_email = ?)", in.UserID, email)
	} else {
		q = q.Where("user_id = ?", in.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var items []Registration
	if err := q.
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

type AdminListParams struct {
	TripID        string
	Status        string
	PaymentStatus string
	Q             string // contact email, name or order id
	Page          int
	PageSize      int
}

func (r *Repo) AdminList(ctx context.Context, in AdminListParams) (ListResult, error) {
	page, size := pageBounds(in.Page, in.PageSize, 30)

	base := r.db.WithContext(ctx).Model(&Registration{})
	if v := strings.TrimSpace(in.TripID); v != "" {
		base = base.Where("trip_id = ?", v)
	}
	if v := strings.TrimSpace(in.Status); v != "" {
		base = base.Where("registration_status = ?", v)
	}
	if v := strings.TrimSpace(in.PaymentStatus); v != "" {
		base = base.Where("payment_status = ?", v)
	}
	if q := strings.TrimSpace(in.Q); q != "" {
		like := "%" + q + "%"
		base = base.Where("(contact_email LIKE ? OR contact_name LIKE ? OR order_id LIKE ?)", like, like, like)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var items []Registration
	if err := base.
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

func (r *Repo) Events(ctx context.Context, registrationID string) ([]RegistrationEvent, error) {
	var ev []RegistrationEvent
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&ev, "registration_id = ?", registrationID).Error
	return ev, err
}

func pageBounds(page, size, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = def
	}
	return page, size
}
