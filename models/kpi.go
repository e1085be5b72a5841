package models

import (
	"time"
)

type Category string

const (
	CategoryCommon      Category = "common"
	CategoryEcosystem   Category = "ecosystem"
	CategoryHospitality Category = "hospitality"
	CategoryAgriForest  Category = "agriForest"
	CategoryDBMSMIS     Category = "dbmsMIS"
)

// Categories lists the fixed category set in display order.
var Categories = []Category{CategoryCommon, CategoryEcosystem, CategoryHospitality, CategoryAgriForest, CategoryDBMSMIS}

func (c Category) Valid() bool {
	return c.rank() >= 0
}

func (c Category) rank() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return -1
}

// CategoryLess orders by the fixed category order, unknown categories last.
func CategoryLess(a, b Category) bool {
	ra, rb := a.rank(), b.rank()
	if ra < 0 {
		ra = len(Categories)
	}
	if rb < 0 {
		rb = len(Categories)
	}
	return ra < rb
}

// MasterKPI is the admin-managed template of a trackable metric.
type MasterKPI struct {
	ID              string   `json:"id" bson:"_id" validate:"required,max=64,excludesall=: "`
	KPIName         string   `json:"kpiName" bson:"kpi_name" validate:"required,max=200"`
	Description     string   `json:"description" bson:"description" validate:"max=1000"`
	MonthlyTarget   Measure  `json:"monthlyTarget" bson:"monthly_target"`
	ReportingFormat string   `json:"reportingFormat" bson:"reporting_format" validate:"max=500"`
	Category        Category `json:"category" bson:"category" validate:"required,kpicategory"`
	Metadata        Metadata `json:"metadata" bson:"metadata"`
}

type Metadata struct {
	CreatedBy string    `json:"createdBy" bson:"created_by"`
	UpdatedBy string    `json:"updatedBy" bson:"updated_by"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// KPIView is a master KPI merged with an agent's value for one period.
type KPIView struct {
	ID              string   `json:"id"`
	KPIName         string   `json:"kpiName"`
	Description     string   `json:"description"`
	MonthlyTarget   Measure  `json:"monthlyTarget"`
	ReportingFormat string   `json:"reportingFormat"`
	Category        Category `json:"category"`
	CurrentValue    Measure  `json:"currentValue"`
	ProgressPercent *int     `json:"progressPercent,omitempty"`
	MonthYear       string   `json:"monthYear,omitempty"`
	Assigned        bool     `json:"assigned"`
}

// NewKPIView builds a view of master at the given value.
func NewKPIView(master MasterKPI, value Measure, period string) KPIView {
	view := KPIView{
		ID:              master.ID,
		KPIName:         master.KPIName,
		Description:     master.Description,
		MonthlyTarget:   master.MonthlyTarget,
		ReportingFormat: master.ReportingFormat,
		Category:        master.Category,
		CurrentValue:    value,
		MonthYear:       period,
	}
	if pct, ok := ProgressPercent(view.MonthlyTarget, view.CurrentValue); ok {
		view.ProgressPercent = &pct
	}
	return view
}

// KPISummary aggregates one KPI across the agents of a period.
type KPISummary struct {
	KPIID          string  `json:"kpiId" bson:"_id"`
	KPIName        string  `json:"kpiName" bson:"kpi_name"`
	Category       string  `json:"category" bson:"category"`
	AgentsAssigned int     `json:"agentsAssigned" bson:"agents_assigned"`
	Submissions    int     `json:"submissions" bson:"submissions"`
	NumericTotal   float64 `json:"numericTotal" bson:"numeric_total"`
	AgentsOnTarget int     `json:"agentsOnTarget" bson:"agents_on_target"`
}
