package mock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/provider"
)

const portalType = "NHIS"

// PortalProvider fabricates NHIS-style checkup and visit records.
type PortalProvider struct{}

// NewPortalProvider creates a mock portal provider.
func NewPortalProvider() *PortalProvider {
	return &PortalProvider{}
}

func (p *PortalProvider) Authenticate(ctx context.Context, credentials map[string]string) (*provider.AuthResult, error) {
	return &provider.AuthResult{
		Token:        "mock_portal_token_" + uuid.New().String(),
		PortalUserID: "mock_portal_user_" + uuid.New().String()[:8],
		PortalName:   "건강보험심사평가원",
		Success:      true,
	}, nil
}

// GetCheckupRecords fabricates one checkup on the 15th of each month, three at most.
func (p *PortalProvider) GetCheckupRecords(ctx context.Context, token string, start, end time.Time) ([]provider.CheckupRecord, error) {
	var records []provider.CheckupRecord

	for current := startOfDay(start); !current.After(end) && len(records) < 3; current = current.AddDate(0, 0, 1) {
		if current.Day() != 15 {
			continue
		}
		records = append(records, provider.CheckupRecord{
			CheckupDate:     current,
			InstitutionName: "건강보험심사평가원",
			CheckupType:     "일반건강검진",
			Results: map[string]interface{}{
				"bloodPressure": map[string]interface{}{"systolic": 120, "diastolic": 80},
				"bloodSugar":    95,
				"cholesterol":   180,
				"bmi":           22.5,
			},
		})
	}

	return records, nil
}

// GetMedicalRecords fabricates a visit on days divisible by ten, five at most.
func (p *PortalProvider) GetMedicalRecords(ctx context.Context, token string, start, end time.Time) ([]provider.MedicalRecord, error) {
	var records []provider.MedicalRecord

	for current := startOfDay(start); !current.After(end) && len(records) < 5; current = current.AddDate(0, 0, 1) {
		if current.Day()%10 != 0 {
			continue
		}
		records = append(records, provider.MedicalRecord{
			VisitDate:       current,
			InstitutionName: "서울대학교병원",
			Department:      "내과",
			Diagnosis:       "고혈압",
			Details: map[string]interface{}{
				"prescription": "항고혈압제",
				"symptoms":     "두통, 어지러움",
			},
		})
	}

	return records, nil
}

func (p *PortalProvider) PortalType() string {
	return portalType
}

var _ provider.PortalDataProvider = (*PortalProvider)(nil)
