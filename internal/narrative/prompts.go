package narrative

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/negros-cram/brrs/internal/model"
)

const (
	barangaySystem = "You are a climate resilience expert analyzing barangays in Negros Oriental, Philippines."
	airSystem      = "You are an environmental health expert analyzing air quality in Negros Oriental, Philippines."
	reportSystem   = "You are a climate policy analyst writing summaries for Philippine municipalities."

	// airQualityCities caps how many municipalities an air-quality prompt lists.
	airQualityCities = 5
	temperature      = 0.7
)

var printer = message.NewPrinter(language.English)

func na(o model.Optional, format string) string {
	v, ok := o.Get()
	if !ok {
		return "N/A"
	}
	return printer.Sprintf(format, v)
}

// BarangayPrompt describes one barangay's profile, scores and hazards.
func BarangayPrompt(d *model.BarangayDetail) Prompt {
	population := "N/A"
	if d.Population != nil {
		population = printer.Sprintf("%d", *d.Population)
	}
	location := "Inland"
	if d.IsCoastal {
		location = "Coastal"
	}
	municipality := d.MunicipalityName
	if municipality == "" {
		municipality = d.Municipality
	}
	if municipality == "" {
		municipality = "Unknown"
	}

	overall, risk := model.None(), string(model.RiskUnknown)
	exposure, health, capacity := model.None(), model.None(), model.None()
	if s := d.Score; s != nil {
		overall = model.Some(s.Overall)
		risk = string(s.RiskLevel)
		exposure = model.Some(s.HazardExposure)
		health = model.Some(s.HealthSensitivity)
		capacity = model.Some(s.AdaptiveCapacity)
	}

	hazards := "None reported"
	if names := d.HazardNames(); len(names) > 0 {
		hazards = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Barangay Profile:**\n")
	fmt.Fprintf(&b, "- Name: %s, %s\n", d.Name, municipality)
	fmt.Fprintf(&b, "- Population: %s\n", population)
	fmt.Fprintf(&b, "- Location: %s\n\n", location)
	fmt.Fprintf(&b, "**Resilience Metrics:**\n")
	fmt.Fprintf(&b, "- Overall BRRS Score: %s/100\n", na(overall, "%.1f"))
	fmt.Fprintf(&b, "- Risk Level: %s\n", risk)
	fmt.Fprintf(&b, "- Hazard Exposure: %s/100\n", na(exposure, "%.1f"))
	fmt.Fprintf(&b, "- Health Sensitivity: %s/100\n", na(health, "%.1f"))
	fmt.Fprintf(&b, "- Adaptive Capacity: %s/100\n\n", na(capacity, "%.1f"))
	fmt.Fprintf(&b, "**Identified Hazards:**\n%s\n", hazards)
	if len(d.ClassRecords) > 0 {
		b.WriteString("\n**Hazard Map Coverage (% of area):**\n")
		for _, r := range d.ClassRecords {
			label := string(r.Hazard)
			if r.Period != "" {
				label += " " + string(r.Period)
			}
			p := r.Percentages
			fmt.Fprintf(&b, "- %s: low %.1f, medium %.1f, high %.1f, very high %.1f\n",
				label, p.Low, p.Medium, p.High, p.VeryHigh)
		}
	}
	b.WriteString(`
Provide a clear, actionable analysis in 3 sections:

**KEY VULNERABILITIES:** (2-3 sentences)
Identify the main climate risks this barangay faces.

**PRIORITY ACTIONS:** (3 specific recommendations)
List the top 3 most important actions to improve resilience.

**RESOURCE PRIORITIES:** (2 sentences)
Where should resources be allocated first?

Keep the tone professional but accessible. Use specific numbers from the data.`)

	return Prompt{
		Subject:     fmt.Sprintf("barangay:%d", d.ID),
		System:      barangaySystem,
		User:        b.String(),
		MaxTokens:   400,
		Temperature: temperature,
	}
}

// AirQualityPrompt describes the worst municipalities of one month. The
// second return is false when there is nothing to describe.
func AirQualityPrompt(rows []model.AirQuality) (Prompt, bool) {
	if len(rows) == 0 {
		return Prompt{}, false
	}
	sorted := append([]model.AirQuality(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AvgAQI != sorted[j].AvgAQI {
			return sorted[i].AvgAQI > sorted[j].AvgAQI
		}
		return sorted[i].MunicipalityName < sorted[j].MunicipalityName
	})
	if len(sorted) > airQualityCities {
		sorted = sorted[:airQualityCities]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Air Quality for %s:**\n", sorted[0].Period())
	for _, aq := range sorted {
		name := aq.MunicipalityName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "- %s: AQI %.1f (%s) - PM2.5: %s μg/m³, PM10: %s μg/m³, O₃: %s μg/m³\n",
			name, aq.AvgAQI, aq.Category(), na(aq.AvgPM25, "%.1f"), na(aq.AvgPM10, "%.1f"), na(aq.AvgO3, "%.1f"))
	}
	b.WriteString(`
**AQI Reference (OpenWeather 1-5 scale):**
- 1: Good
- 2: Fair
- 3: Moderate
- 4: Poor
- 5: Very Poor

Provide a brief analysis in 3 sections:

**OVERALL ASSESSMENT:** (2 sentences)
Current air quality status across the region.

**HEALTH IMPLICATIONS:** (2-3 sentences)
Who is most at risk and what are the health concerns?

**RECOMMENDATIONS:** (3 specific actions)
What should residents and local governments do?

Be concise and actionable.`)

	return Prompt{
		Subject:     "air-quality:" + sorted[0].Period(),
		System:      airSystem,
		User:        b.String(),
		MaxTokens:   350,
		Temperature: temperature,
	}, true
}

// MunicipalPrompt asks for an executive summary of a municipality rollup.
func MunicipalPrompt(r *model.MunicipalityRollup) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "**Municipality:** %s\n", r.Name)
	fmt.Fprintf(&b, "**Total Barangays:** %d\n", r.BarangayCount)
	fmt.Fprintf(&b, "**Average BRRS Score:** %.1f\n", r.AverageBRRS)
	fmt.Fprintf(&b, "**High-Risk Barangays:** %d\n", r.HighRiskCount)
	fmt.Fprintf(&b, "**Medium-Risk Barangays:** %d\n", r.MediumRiskCount)
	fmt.Fprintf(&b, "**Coastal Barangays:** %d\n", r.CoastalCount)
	b.WriteString(`
Provide a 2-paragraph executive summary:

**Paragraph 1:** Current resilience status and main challenges
**Paragraph 2:** Key priorities for improving climate resilience

Keep it concise (max 150 words total).`)

	return Prompt{
		Subject:     fmt.Sprintf("municipality:%d", r.MunicipalityID),
		System:      reportSystem,
		User:        b.String(),
		MaxTokens:   250,
		Temperature: temperature,
	}
}
