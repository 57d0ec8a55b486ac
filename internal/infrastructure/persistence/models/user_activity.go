package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pulse/activitypipe/internal/domain/activity"
)

// UserActivityModel is one row of the user_activity table, the input of the SQL models
type UserActivityModel struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement"`
	UserID                 string          `gorm:"type:varchar(64);not null"`
	TransactID             string          `gorm:"type:varchar(128);not null"`
	FirstName              string          `gorm:"type:varchar(100)"`
	LastName               string          `gorm:"type:varchar(100)"`
	Email                  string          `gorm:"type:varchar(255);not null"`
	DateOfBirth            string          `gorm:"type:varchar(10)"`
	Address                string          `gorm:"type:varchar(255)"`
	State                  string          `gorm:"type:varchar(100)"`
	Country                string          `gorm:"type:varchar(100)"`
	Company                string          `gorm:"type:varchar(255)"`
	JobTitle               string          `gorm:"type:varchar(255)"`
	IPAddress              string          `gorm:"type:varchar(45)"`
	IsActive               string          `gorm:"type:varchar(3);not null"`
	LoginTime              time.Time       `gorm:"not null"`
	LogoutTime             time.Time       `gorm:"not null"`
	AccountCreated         time.Time       `gorm:"not null"`
	AccountUpdated         time.Time       `gorm:"not null"`
	AccountDeleted         *time.Time
	SessionDurationMinutes float64         `gorm:"not null"`
	ProductName            string          `gorm:"type:varchar(100);not null"`
	Price                  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	PurchaseStatus         string          `gorm:"type:varchar(20);not null"`
	UserAgent              string          `gorm:"type:text"`
	DeviceType             string          `gorm:"type:varchar(20)"`
	OS                     string          `gorm:"column:os;type:varchar(50)"`
	Browser                string          `gorm:"type:varchar(50)"`
	CohortDate             string          `gorm:"type:varchar(7)"`
	UserAgeDays            int
	EngagementLevel        string          `gorm:"type:varchar(20)"`
	PriceTier              string          `gorm:"type:varchar(20)"`
	CustomerLifetimeValue  decimal.Decimal `gorm:"type:decimal(16,2)"`
}

// TableName returns the table name for GORM
func (UserActivityModel) TableName() string {
	return "user_activity"
}

// FromDomain populates the model from a cleaned record
func (m *UserActivityModel) FromDomain(r activity.Record) {
	m.UserID = r.UserID
	m.TransactID = r.TransactID
	m.FirstName = r.FirstName
	m.LastName = r.LastName
	m.Email = r.Email
	m.DateOfBirth = r.DateOfBirth
	m.Address = r.Address
	m.State = r.State
	m.Country = r.Country
	m.Company = r.Company
	m.JobTitle = r.JobTitle
	m.IPAddress = r.IPAddress
	m.IsActive = string(r.IsActive)
	m.LoginTime = r.LoginTime
	m.LogoutTime = r.LogoutTime
	m.AccountCreated = r.AccountCreated
	m.AccountUpdated = r.AccountUpdated
	m.AccountDeleted = r.AccountDeleted
	m.SessionDurationMinutes = r.SessionDurationMinutes
	m.ProductName = r.ProductName
	m.Price = r.Price
	m.PurchaseStatus = string(r.PurchaseStatus)
	m.UserAgent = r.UserAgent
	m.DeviceType = string(r.DeviceType)
	m.OS = r.OS
	m.Browser = r.Browser
	m.CohortDate = r.CohortDate
	m.UserAgeDays = r.UserAgeDays
	m.EngagementLevel = string(r.EngagementLevel)
	m.PriceTier = string(r.PriceTier)
	m.CustomerLifetimeValue = r.CustomerLifetimeValue
}

// ToDomain converts the row back to a record
func (m *UserActivityModel) ToDomain() activity.Record {
	var deleted *time.Time
	if m.AccountDeleted != nil {
		t := m.AccountDeleted.UTC()
		deleted = &t
	}
	return activity.Record{
		UserID:                 m.UserID,
		TransactID:             m.TransactID,
		FirstName:              m.FirstName,
		LastName:               m.LastName,
		Email:                  m.Email,
		DateOfBirth:            m.DateOfBirth,
		Address:                m.Address,
		State:                  m.State,
		Country:                m.Country,
		Company:                m.Company,
		JobTitle:               m.JobTitle,
		IPAddress:              m.IPAddress,
		IsActive:               activity.ActiveFlag(m.IsActive),
		LoginTime:              m.LoginTime.UTC(),
		LogoutTime:             m.LogoutTime.UTC(),
		AccountCreated:         m.AccountCreated.UTC(),
		AccountUpdated:         m.AccountUpdated.UTC(),
		AccountDeleted:         deleted,
		SessionDurationMinutes: m.SessionDurationMinutes,
		ProductName:            m.ProductName,
		Price:                  m.Price,
		PurchaseStatus:         activity.PurchaseStatus(m.PurchaseStatus),
		UserAgent:              m.UserAgent,
		DeviceType:             activity.DeviceType(m.DeviceType),
		OS:                     m.OS,
		Browser:                m.Browser,
		CohortDate:             m.CohortDate,
		UserAgeDays:            m.UserAgeDays,
		EngagementLevel:        activity.EngagementLevel(m.EngagementLevel),
		PriceTier:              activity.PriceTier(m.PriceTier),
		CustomerLifetimeValue:  m.CustomerLifetimeValue,
	}
}
