package traits

import "enricher/pkg/airtable"

// Kind is the Airtable column type a trait is written into.
type Kind string

const (
	KindText     Kind = "singleLineText"
	KindLongText Kind = "multilineText"
	KindSelect   Kind = "singleSelect"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
)

// Confidence levels accepted by the AI_Confidence_Score select.
var confidenceChoices = []struct{ Name, Color string }{
	{"High", "greenBright"},
	{"Medium", "yellowBright"},
	{"Low", "redBright"},
}

// Column binds one trait value to the Airtable column it is written to.
type Column struct {
	Name      string
	Section   string // empty for top-level keys
	Key       string
	Kind      Kind
	Precision int // KindNumber only
}

// Columns lists every AI_* column in table order. The formatter and the
// field creator both read it, so a column is never written without a
// definition.
var Columns = []Column{
	{Name: "AI_Full_Name", Key: "full_name", Kind: KindText},
	{Name: "AI_Estimated_Age", Key: "estimated_age", Kind: KindText},
	{Name: "AI_Confidence_Score", Key: "confidence_score", Kind: KindSelect},

	{Name: "AI_Undergraduate", Section: "education_stages", Key: "undergraduate", Kind: KindLongText},
	{Name: "AI_Masters", Section: "education_stages", Key: "masters", Kind: KindLongText},
	{Name: "AI_PhD", Section: "education_stages", Key: "phd", Kind: KindLongText},
	{Name: "AI_Other_Education", Section: "education_stages", Key: "other_education", Kind: KindLongText},

	{Name: "AI_Avg_Tenure_Per_Role", Section: "career_insights", Key: "avg_tenure_per_role", Kind: KindNumber, Precision: 2},
	{Name: "AI_Total_Years_Experience", Section: "career_insights", Key: "total_years_experience", Kind: KindNumber, Precision: 2},
	{Name: "AI_Total_Experience_Count", Section: "career_insights", Key: "total_experience_count", Kind: KindNumber},
	{Name: "AI_Founder_Experience_Count", Section: "career_insights", Key: "founder_experience_count", Kind: KindNumber},
	{Name: "AI_Industry_Switches", Section: "career_insights", Key: "industry_switches", Kind: KindNumber},
	{Name: "AI_Years_Out_Of_Education", Section: "career_insights", Key: "years_out_of_education", Kind: KindNumber},
	{Name: "AI_Years_In_Industry", Section: "career_insights", Key: "years_in_industry", Kind: KindNumber},
	{Name: "AI_Job_Hopper", Section: "career_insights", Key: "job_hopper", Kind: KindCheckbox},
	{Name: "AI_Has_Leadership_Experience", Section: "career_insights", Key: "has_leadership_experience", Kind: KindCheckbox},
	{Name: "AI_Has_C_Suite_Experience", Section: "career_insights", Key: "has_previous_c_suite_experience", Kind: KindCheckbox},
	{Name: "AI_Career_Summary", Section: "career_insights", Key: "career_summary", Kind: KindLongText},

	{Name: "AI_Notable_Companies", Section: "company_background", Key: "notable_companies", Kind: KindLongText},
	{Name: "AI_Startup_Companies", Section: "company_background", Key: "startup_companies", Kind: KindLongText},

	{Name: "AI_Accelerators", Section: "accelerator_and_programs", Key: "accelerators", Kind: KindLongText},
	{Name: "AI_Fellowship_Programs", Section: "accelerator_and_programs", Key: "fellowship_programs", Kind: KindLongText},
	{Name: "AI_Board_Positions", Section: "accelerator_and_programs", Key: "board_positions", Kind: KindLongText},

	{Name: "AI_Studies_Field", Section: "education_career_alignment", Key: "studies_field", Kind: KindText},
	{Name: "AI_Current_Field", Section: "education_career_alignment", Key: "current_field", Kind: KindText},
	{Name: "AI_Pivot_Description", Section: "education_career_alignment", Key: "pivot_description", Kind: KindLongText},

	{Name: "AI_Headline_Keywords", Section: "personal_brand", Key: "headline_keywords", Kind: KindLongText},
	{Name: "AI_Academic_Roles", Section: "research_and_academic", Key: "academic_roles", Kind: KindLongText},
	{Name: "AI_Countries_Worked", Section: "international_experience", Key: "countries_worked", Kind: KindLongText},
	{Name: "AI_Global_Companies", Section: "international_experience", Key: "global_companies", Kind: KindCheckbox},
}

// FieldSpec returns the Airtable field definition for the column.
func (c Column) FieldSpec() airtable.FieldSpec {
	spec := airtable.FieldSpec{Name: c.Name, Type: string(c.Kind)}
	switch c.Kind {
	case KindNumber:
		spec.Options = map[string]interface{}{"precision": c.Precision}
	case KindCheckbox:
		spec.Options = map[string]interface{}{"icon": "check", "color": "greenBright"}
	case KindSelect:
		choices := make([]map[string]string, 0, len(confidenceChoices))
		for _, ch := range confidenceChoices {
			choices = append(choices, map[string]string{"name": ch.Name, "color": ch.Color})
		}
		spec.Options = map[string]interface{}{"choices": choices}
	}
	return spec
}

// FieldSpecs returns the definitions of every AI_* column.
func FieldSpecs() []airtable.FieldSpec {
	specs := make([]airtable.FieldSpec, 0, len(Columns))
	for _, c := range Columns {
		specs = append(specs, c.FieldSpec())
	}
	return specs
}
