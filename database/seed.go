package database

import (
	"context"
	"fmt"
	"time"

	"kpitracker/models"
	repository "kpitracker/repositories"

	"go.uber.org/zap"
)

// ReferenceMasterKPIs returns the master KPI catalogue an empty deployment starts with.
func ReferenceMasterKPIs() []models.MasterKPI {
	return []models.MasterKPI{
		{ID: "common1", KPIName: "Enterprise Interactions (Field Visits)", Description: "No. of MSMEs, SHGs, informal enterprises met (field grievances)", MonthlyTarget: models.Numeric(10), ReportingFormat: "Field Visit Report with geo-tagged photos", Category: models.CategoryCommon},
		{ID: "common2", KPIName: "Beneficiary Grievances Resolved", Description: "Grievances addressed for field enterprises", MonthlyTarget: models.Numeric(10), ReportingFormat: "Google Sheet", Category: models.CategoryCommon},
		{ID: "common3", KPIName: "Baseline Surveys or Field Assessments", Description: "Surveys conducted for ground mapping", MonthlyTarget: models.Numeric(4), ReportingFormat: "Google Sheet", Category: models.CategoryCommon},
		{ID: "common4", KPIName: "Scheme Applications Facilitated", Description: "Applications in PMFME, PMEGP, UDYAM, E-Shram, etc.", MonthlyTarget: models.Numeric(10), ReportingFormat: "Application copies/Screenshot of status", Category: models.CategoryCommon},
		{ID: "common5", KPIName: "Follow-ups on Scheme Applications", Description: "Tracking and facilitating pending cases", MonthlyTarget: models.Numeric(5), ReportingFormat: "Tracking Sheet with outcome status", Category: models.CategoryCommon},
		{ID: "common6", KPIName: "Workshops / EDP Organized", Description: "Mobilization, awareness events", MonthlyTarget: models.Numeric(2), ReportingFormat: "Attendance sheets, photos, videos", Category: models.CategoryCommon},
		{ID: "common7", KPIName: "Financial Literacy or Formalization Support", Description: "1-to-1 guidance on PAN, GST, Udyam, New Industrial Policy, etc.", MonthlyTarget: models.Numeric(10), ReportingFormat: "Documentation list, Google Sheet", Category: models.CategoryCommon},
		{ID: "common8", KPIName: "New Enterprise Cases Identified", Description: "New informal businesses identified and profiled", MonthlyTarget: models.Numeric(5), ReportingFormat: "Enterprise profiling Google Sheet", Category: models.CategoryCommon},
		{ID: "common9", KPIName: "Credit Linkage Facilitation", Description: "Referrals to banks, NBFCs", MonthlyTarget: models.Numeric(5), ReportingFormat: "Bank interaction/follow-up record/ google sheet", Category: models.CategoryCommon},
		{ID: "common10", KPIName: "Portal/MIS Updates & Data Entry", Description: "Timely data updates in MIS/Google Sheets", MonthlyTarget: models.Numeric(100), ReportingFormat: "MIS Portal/Google Sheet", Category: models.CategoryCommon},
		{ID: "common11", KPIName: "Convergence & Departmental Coordination", Description: "Meetings with DICs, RD, Agri/Horti, etc.", MonthlyTarget: models.Numeric(2), ReportingFormat: "Meeting MoM or signed attendance list", Category: models.CategoryCommon},
		{ID: "common12", KPIName: "Support to EDPs, RAMP, and Field Activities", Description: "Participation in Enterprise Development Programs or RAMP", MonthlyTarget: models.Descriptive("As per deployment"), ReportingFormat: "Program report signed by supervisor", Category: models.CategoryCommon},
		{ID: "common13", KPIName: "Case Studies / Beneficiary Success Stories", Description: "Documenting success stories from the field", MonthlyTarget: models.Numeric(1), ReportingFormat: "Minimum 500 words + image/video", Category: models.CategoryCommon},
		{ID: "common14", KPIName: "Pollution/Pollutant Check", Description: "Visit to Industrial Estate, and do proper reading of machine for pollution/pollutant", MonthlyTarget: models.Numeric(2), ReportingFormat: "Google sheet with geo tagged photos", Category: models.CategoryCommon},
		{ID: "eco1", KPIName: "Loan Applications Supported", MonthlyTarget: models.Numeric(5), ReportingFormat: "Google Sheet", Category: models.CategoryEcosystem},
		{ID: "eco2", KPIName: "Business Model/Plan Guidance Provided", MonthlyTarget: models.Numeric(5), ReportingFormat: "Google Sheet", Category: models.CategoryEcosystem},
		{ID: "eco3", KPIName: "Artisans/Entrepreneurs Linked to Schemes", MonthlyTarget: models.Numeric(10), ReportingFormat: "Google Sheet", Category: models.CategoryEcosystem},
		{ID: "eco4", KPIName: "Financial Literacy Sessions (Group) Conducted", MonthlyTarget: models.Numeric(5), ReportingFormat: "Photos/Videos/Google Sheet", Category: models.CategoryEcosystem},
		{ID: "eco5", KPIName: "New Initiatives in Entrepreneurship Promotion", MonthlyTarget: models.Numeric(1), ReportingFormat: "Report/Google Sheet", Category: models.CategoryEcosystem},
		{ID: "eco6", KPIName: "Enterprise/Business Ideas Scouted", MonthlyTarget: models.Numeric(1), ReportingFormat: "Report/Google Sheet", Category: models.CategoryEcosystem},
		{ID: "hosp1", KPIName: "Tourism Potential Sites Documented or Supported", MonthlyTarget: models.Numeric(2), ReportingFormat: "Photos/Videos/Google Sheet", Category: models.CategoryHospitality},
		{ID: "hosp2", KPIName: "Tourism Promotion Events / Community Engagements", MonthlyTarget: models.Numeric(4), ReportingFormat: "Photos/Videos/Google Sheet", Category: models.CategoryHospitality},
		{ID: "hosp3", KPIName: "Homestays/Tour Operators Onboarded/Assisted", MonthlyTarget: models.Numeric(5), ReportingFormat: "Google Sheet", Category: models.CategoryHospitality},
		{ID: "hosp4", KPIName: "Local Youth/SHGs Trained in Tourism/Hospitality Services", MonthlyTarget: models.Numeric(10), ReportingFormat: "Google Sheet", Category: models.CategoryHospitality},
		{ID: "agri1", KPIName: "Agri/Forest-Based Enterprises Supported", MonthlyTarget: models.Numeric(5), ReportingFormat: "Google Sheet", Category: models.CategoryAgriForest},
		{ID: "agri2", KPIName: "SHGs Linked to Agri/Animal Husbandry/Processing Units", MonthlyTarget: models.Numeric(3), ReportingFormat: "Google Sheet", Category: models.CategoryAgriForest},
		{ID: "dbms1", KPIName: "Portal/MIS Data Entry & Monitoring", MonthlyTarget: models.Numeric(100), ReportingFormat: "Google Sheet, MIS Portal", Category: models.CategoryDBMSMIS},
		{ID: "dbms2", KPIName: "Data Validation, Error Rectification, and Reporting", MonthlyTarget: models.Descriptive("Monthly Review"), ReportingFormat: "Issue logs, rectification reports via email", Category: models.CategoryDBMSMIS},
		{ID: "dbms3", KPIName: "Collaboration with Line Departments and Portal Developers", MonthlyTarget: models.Descriptive("Continuous"), ReportingFormat: "Meeting Notes, Email Records", Category: models.CategoryDBMSMIS},
	}
}

// SeedMasterKPIs inserts the reference catalogue when no master KPI exists yet.
func SeedMasterKPIs(ctx context.Context, repo repository.MasterKPIRepository, log *zap.Logger) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count master KPIs: %w", err)
	}
	if count > 0 {
		log.Debug("Master KPIs present, skipping seed", zap.Int64("count", count))
		return nil
	}

	now := time.Now()
	kpis := ReferenceMasterKPIs()
	for i := range kpis {
		kpis[i].Metadata = models.Metadata{CreatedBy: "system", UpdatedBy: "system", CreatedAt: now, UpdatedAt: now}
	}
	if err := repo.InsertMany(ctx, kpis); err != nil {
		return fmt.Errorf("failed to seed master KPIs: %w", err)
	}
	log.Info("Seeded master KPIs", zap.Int("count", len(kpis)))
	return nil
}
