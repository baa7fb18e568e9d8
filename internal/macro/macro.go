// Package macro computes daily calorie and macronutrient targets from a
// user profile using the Mifflin-St Jeor equation.
package macro

import (
	"math"

	"github.com/dkazarov/fitplan/internal/errors"
)

// Sex is the biological sex used by the BMR equation.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ActivityLevel scales BMR into total daily energy expenditure.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"   // little or no exercise
	ActivityLight      ActivityLevel = "light"       // 1-3 sessions/week
	ActivityModerate   ActivityLevel = "moderate"    // 3-5 sessions/week
	ActivityActive     ActivityLevel = "active"      // 6-7 sessions/week
	ActivityVeryActive ActivityLevel = "very_active" // physical job or 2x training
)

var activityFactors = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// Goal shifts the calorie target relative to maintenance.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

const (
	goalDelta    = 500  // kcal added/subtracted for gain/lose
	calorieFloor = 1200 // minimum daily target on a deficit
	proteinPerKg = 1.8
	fatShare     = 0.25
	kcalPerGramP = 4
	kcalPerGramF = 9
	kcalPerGramC = 4
)

// Profile is the input to the goal calculation.
type Profile struct {
	Sex      Sex           `json:"sex"`
	Age      int           `json:"age"`
	HeightCm float64       `json:"height_cm"`
	WeightKg float64       `json:"weight_kg"`
	Activity ActivityLevel `json:"activity"`
	Goal     Goal          `json:"goal"`
}

// Goals is a daily calorie and macro target set. Gram values are rounded to
// whole grams; calories to whole kcal.
type Goals struct {
	BMR      float64 `json:"bmr"`
	TDEE     float64 `json:"tdee"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Fat      float64 `json:"fat_g"`
	Carbs    float64 `json:"carbs_g"`
}

// Calculate derives daily goals from a profile. Protein is fixed per kg of
// body weight, fat takes a quarter of the calorie target, and carbohydrates
// absorb the remainder.
func Calculate(p Profile) (*Goals, error) {
	if p.Sex != SexMale && p.Sex != SexFemale {
		return nil, errors.NewInvalidRequest("sex must be male or female")
	}
	if p.Age <= 0 || p.Age > 120 {
		return nil, errors.NewInvalidRequest("age must be between 1 and 120")
	}
	if p.HeightCm <= 0 || p.WeightKg <= 0 {
		return nil, errors.NewInvalidRequest("height and weight must be positive")
	}
	factor, ok := activityFactors[p.Activity]
	if !ok {
		return nil, errors.NewInvalidRequest("activity must be one of: sedentary, light, moderate, active, very_active")
	}
	if p.Goal != GoalLose && p.Goal != GoalMaintain && p.Goal != GoalGain {
		return nil, errors.NewInvalidRequest("goal must be one of: lose, maintain, gain")
	}

	// Mifflin-St Jeor
	bmr := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Sex == SexMale {
		bmr += 5
	} else {
		bmr -= 161
	}

	tdee := bmr * factor

	calories := tdee
	switch p.Goal {
	case GoalLose:
		calories = math.Max(tdee-goalDelta, calorieFloor)
	case GoalGain:
		calories = tdee + goalDelta
	}

	protein := proteinPerKg * p.WeightKg
	fat := calories * fatShare / kcalPerGramF
	carbCalories := calories - protein*kcalPerGramP - fat*kcalPerGramF
	carbs := math.Max(carbCalories/kcalPerGramC, 0)

	return &Goals{
		BMR:      math.Round(bmr),
		TDEE:     math.Round(tdee),
		Calories: math.Round(calories),
		Protein:  math.Round(protein),
		Fat:      math.Round(fat),
		Carbs:    math.Round(carbs),
	}, nil
}
