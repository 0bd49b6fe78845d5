/*

This file contains the grade scale. The five bands partition [0,100] with no
overlap or gap; anything below the D floor is an F.

*/

package scoring

// GradeInfo describes one letter-grade band.
type GradeInfo struct {
	Grade     string  `json:"grade"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Label     string  `json:"label"`
	RiskLevel string  `json:"risk_level"`
}

var gradeScale = []GradeInfo{
	{Grade: "A", Min: 85, Max: 100, Label: "Excellent", RiskLevel: "Minimal Risk"},
	{Grade: "B", Min: 70, Max: 84, Label: "Good", RiskLevel: "Low Risk"},
	{Grade: "C", Min: 55, Max: 69, Label: "Adequate", RiskLevel: "Moderate Risk"},
	{Grade: "D", Min: 40, Max: 54, Label: "Below Average", RiskLevel: "Elevated Risk"},
	{Grade: "F", Min: 0, Max: 39, Label: "Poor", RiskLevel: "High Risk"},
}

// ScoreToGrade converts a numeric score to its letter grade.
func ScoreToGrade(score float64) string {
	for _, band := range gradeScale {
		if score >= band.Min {
			return band.Grade
		}
	}
	return "F"
}

// GradeFor returns the full band info for a grade letter.
func GradeFor(grade string) GradeInfo {
	for _, band := range gradeScale {
		if band.Grade == grade {
			return band
		}
	}
	return gradeScale[len(gradeScale)-1]
}
