package pipeline

import (
	"github.com/pulse/activitypipe/internal/domain/activity"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 " +
	"(KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1"

// rawRecord returns a candidate that passes every validation check
func rawRecord(userID, email string) activity.RawRecord {
	return activity.RawRecord{
		UserID:                 userID,
		FirstName:              "Ada",
		LastName:               "Lovelace",
		Email:                  email,
		DateOfBirth:            "1990-01-01",
		PhoneNumber:            "555-0100",
		Address:                "1 Main St",
		City:                   "Austin",
		State:                  "Texas",
		PostalCode:             "73301",
		Country:                "Canada",
		Company:                "Acme",
		JobTitle:               "Engineer",
		IPAddress:              "10.0.0.1",
		IsActive:               "1",
		LoginTime:              "2023-03-01T10:00:00",
		LogoutTime:             "2023-03-01T11:30:00",
		AccountCreated:         "2022-01-01T00:00:00",
		AccountUpdated:         "2022-06-01T00:00:00",
		SessionDurationMinutes: "90.00",
		ProductID:              "p-1",
		ProductName:            "Alpha",
		Price:                  "1000.00",
		PurchaseStatus:         "completed",
		UserAgent:              iphoneUA,
	}
}
