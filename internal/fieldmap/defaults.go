package fieldmap

import "github.com/sells-group/irs990-cli/internal/model"

// Display labels shared by every form table.
const (
	LabelPeriod       = "Tax Period"
	LabelYear         = "Tax Year"
	LabelForm         = "Form"
	LabelRevenue      = "Total Revenue"
	LabelExpenses     = "Total Expenses"
	LabelAssets       = "Total Assets"
	LabelLiabilities  = "Total Liabilities"
	LabelContribution = "Contributions"
	LabelOfficerComp  = "Officer Compensation"
	LabelPDF          = "PDF"
	LabelUpdated      = "Updated"
)

// Default returns the built-in ProPublica table. The common table uses the
// full 990 field names; the 990-EZ and 990-PF tables map their own names onto
// the same labels.
func Default() *Mapper {
	return &Mapper{
		Common: FieldMap{
			{Key: "tax_prd", Label: LabelPeriod},
			{Key: "tax_prd_yr", Label: LabelYear},
			{Key: "formtype", Label: LabelForm},
			{Key: "totrevenue", Label: LabelRevenue},
			{Key: "totfuncexpns", Label: LabelExpenses},
			{Key: "totassetsend", Label: LabelAssets},
			{Key: "totliabend", Label: LabelLiabilities},
			{Key: "totcntrbgfts", Label: LabelContribution},
			{Key: "compnsatncurrofcr", Label: LabelOfficerComp},
			{Key: "pdf_url", Label: LabelPDF},
			{Key: "updated", Label: LabelUpdated},
		},
		Forms: map[model.FormType]FieldMap{
			model.Form990: {
				{Key: "tax_prd", Label: LabelPeriod},
				{Key: "tax_prd_yr", Label: LabelYear},
				{Key: "formtype", Label: LabelForm},
				{Key: "totrevenue", Label: LabelRevenue},
				{Key: "totfuncexpns", Label: LabelExpenses},
				{Key: "totassetsend", Label: LabelAssets},
				{Key: "totliabend", Label: LabelLiabilities},
				{Key: "totcntrbgfts", Label: LabelContribution},
				{Key: "compnsatncurrofcr", Label: LabelOfficerComp},
				{Key: "pdf_url", Label: LabelPDF},
				{Key: "updated", Label: LabelUpdated},
			},
			model.Form990EZ: {
				{Key: "tax_prd", Label: LabelPeriod},
				{Key: "tax_prd_yr", Label: LabelYear},
				{Key: "formtype", Label: LabelForm},
				{Key: "totrevnue", Label: LabelRevenue},
				{Key: "totexpns", Label: LabelExpenses},
				{Key: "totassetsend", Label: LabelAssets},
				{Key: "totliabend", Label: LabelLiabilities},
				{Key: "totcntrbs", Label: LabelContribution},
				{Key: "officrcomp", Label: LabelOfficerComp},
				{Key: "pdf_url", Label: LabelPDF},
				{Key: "updated", Label: LabelUpdated},
			},
			model.Form990PF: {
				{Key: "tax_prd", Label: LabelPeriod},
				{Key: "tax_prd_yr", Label: LabelYear},
				{Key: "formtype", Label: LabelForm},
				{Key: "totrcptperbks", Label: LabelRevenue},
				{Key: "totexpnspbks", Label: LabelExpenses},
				{Key: "totassetsend", Label: LabelAssets},
				{Key: "totliabend", Label: LabelLiabilities},
				{Key: "grscontrgifts", Label: LabelContribution},
				{Key: "compofficers", Label: LabelOfficerComp},
				{Key: "pdf_url", Label: LabelPDF},
				{Key: "updated", Label: LabelUpdated},
			},
		},
	}
}
