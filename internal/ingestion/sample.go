package ingestion

import (
	"context"

	"github.com/golf-qa/backend/internal/storage/models"
)

const (
	rulesEffectiveDate = "January 1, 2023"
	rulesSourceURL     = "https://www.usga.org/rules.html"
)

// SampleSource serves a built-in excerpt of the Rules of Golf and a small course directory.
type SampleSource struct{}

func NewSampleSource() *SampleSource {
	return &SampleSource{}
}

func (s *SampleSource) Name() string { return "sample" }

func (s *SampleSource) FetchRules(ctx context.Context) ([]models.Rule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rules := make([]models.Rule, len(sampleRules))
	copy(rules, sampleRules)
	return rules, nil
}

func (s *SampleSource) FetchCourses(ctx context.Context) ([]models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SampleCourses(), nil
}

var sampleRules = []models.Rule{
	{
		RuleID:  "1",
		Section: "The Game",
		Title:   "Rule 1: The Game, Player Conduct and the Rules",
		Content: `Purpose: Rule 1 introduces these central principles of the game:
- Play the course as you find it and play the ball as it lies.
- Play by the Rules and in the spirit of the game.
- You are responsible for applying your own penalties if you breach a Rule, so that you cannot gain any potential advantage over your opponent in match play or other players in stroke play.

1.1 The Game of Golf
Golf is played over a round of 18 (or fewer) holes on a course by striking a ball with a club.

Each hole starts with a stroke from the teeing area and ends when the ball is holed on the putting green (or when the Rules otherwise allow you to finish the hole without holing out).

For each stroke, you:
- Play the course as you find it, and
- Play the ball as it lies.

But: The Rules allow you to alter conditions on the course in a few specific situations, and allow or require you to play the ball from a different place than where it lies in other specific situations.`,
		EffectiveDate: rulesEffectiveDate,
		SourceURL:     rulesSourceURL,
	},
	{
		RuleID:  "2",
		Section: "The Course",
		Title:   "Rule 2: The Course",
		Content: `Purpose: Rule 2 introduces the basic features that define the golf course, such as:
- The five defined areas of the course,
- Several types of objects and conditions that can interfere with play, and
- Several types of stakes and lines used to define areas of the course or where free relief is available.

2.1 Boundaries and Out of Bounds
The Committee should define the course boundaries and mark any out of bounds using white stakes or white lines.

2.2 Defined Areas of the Course
There are five defined areas of the course:
(1) The general area
(2) The teeing area you must play from in starting the hole you are playing
(3) All penalty areas
(4) All bunkers
(5) The putting green of the hole you are playing`,
		EffectiveDate: rulesEffectiveDate,
		SourceURL:     rulesSourceURL,
	},
	{
		RuleID:  "13",
		Section: "Putting Greens",
		Title:   "Rule 13: Putting Greens",
		Content: `Purpose: Rule 13 is a specific Rule for putting greens. Putting greens are specially prepared for playing the ball along the ground and there is a flagstick for the hole on each putting green, so certain different Rules apply than for other areas of the course.

13.1 Actions Allowed or Required on Putting Green
13.1a When Ball Is on Putting Green
(1) Ball May Be Marked, Lifted and Cleaned. You may mark the spot of your ball on the putting green and lift and clean the ball, but the ball must be replaced on its original spot.

(2) Sand and Loose Soil May Be Removed. You may remove sand and loose soil on the putting green (but not anywhere else on the course).

(3) Damage May Be Repaired. You may repair damage on the putting green (such as ball-marks, old hole plugs, turf plugs, cut or scrapes made by equipment or flagstick) without penalty, by using your hand, foot or other part of your body or a normal ball-mark repair tool, a tee, a club or similar item of normal equipment.`,
		EffectiveDate: rulesEffectiveDate,
		SourceURL:     rulesSourceURL,
	},
}

type tee = models.TeeDetail

// SampleCourses returns a fresh copy of the built-in course directory.
func SampleCourses() []models.Course {
	return []models.Course{
		{
			Name: "Pebble Beach Golf Links", City: "Pebble Beach", State: "CA", ZipCode: "93953",
			SlopeMin: 142, SlopeMax: 145, RatingMin: 73.9, RatingMax: 75.5,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 6828, Par: 72, CourseRating: 75.5, SlopeRating: 145, Color: "Blue"},
				"Tournament":   tee{Yardage: 6586, Par: 72, CourseRating: 74.2, SlopeRating: 143, Color: "White"},
				"Forward":      tee{Yardage: 5198, Par: 72, CourseRating: 73.9, SlopeRating: 142, Color: "Red"},
			},
			Phone: "(831) 624-3811", Website: "https://www.pebblebeach.com",
		},
		{
			Name: "Augusta National Golf Club", City: "Augusta", State: "GA", ZipCode: "30904",
			SlopeMin: 137, SlopeMax: 155, RatingMin: 72.5, RatingMax: 76.2,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7475, Par: 72, CourseRating: 76.2, SlopeRating: 155, Color: "Black"},
				"Members":      tee{Yardage: 6865, Par: 72, CourseRating: 74.0, SlopeRating: 145, Color: "White"},
			},
			Phone: "(706) 667-6000", Website: "https://www.masters.com",
		},
		{
			Name: "Bethpage State Park - Black Course", City: "Farmingdale", State: "NY", ZipCode: "11735",
			SlopeMin: 144, SlopeMax: 155, RatingMin: 75.3, RatingMax: 77.0,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7468, Par: 71, CourseRating: 77.0, SlopeRating: 155, Color: "Black"},
				"Blue":         tee{Yardage: 6979, Par: 71, CourseRating: 75.3, SlopeRating: 144, Color: "Blue"},
			},
			Phone: "(516) 249-0700", Website: "https://parks.ny.gov/golf-courses/bethpage-state-park",
		},
		{
			Name: "Torrey Pines Golf Course - South", City: "La Jolla", State: "CA", ZipCode: "92037",
			SlopeMin: 129, SlopeMax: 144, RatingMin: 72.1, RatingMax: 75.5,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7765, Par: 72, CourseRating: 75.5, SlopeRating: 144, Color: "Black"},
				"Blue":         tee{Yardage: 7055, Par: 72, CourseRating: 73.8, SlopeRating: 137, Color: "Blue"},
				"White":        tee{Yardage: 6597, Par: 72, CourseRating: 72.1, SlopeRating: 129, Color: "White"},
			},
			Phone: "(858) 452-3226", Website: "https://www.sandiego.gov/park-and-recreation/golf/torreypines",
		},
		{
			Name: "Pinehurst No. 2", City: "Pinehurst", State: "NC", ZipCode: "28374",
			SlopeMin: 135, SlopeMax: 155, RatingMin: 73.4, RatingMax: 76.1,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7588, Par: 72, CourseRating: 76.1, SlopeRating: 155, Color: "Black"},
				"Blue":         tee{Yardage: 7057, Par: 72, CourseRating: 74.5, SlopeRating: 145, Color: "Blue"},
				"White":        tee{Yardage: 6519, Par: 72, CourseRating: 73.4, SlopeRating: 135, Color: "White"},
			},
			Phone: "(855) 235-8507", Website: "https://www.pinehurst.com",
		},
		{
			Name: "TPC Sawgrass - Players Stadium", City: "Ponte Vedra Beach", State: "FL", ZipCode: "32082",
			SlopeMin: 127, SlopeMax: 155, RatingMin: 71.4, RatingMax: 76.0,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7256, Par: 72, CourseRating: 76.0, SlopeRating: 155, Color: "Black"},
				"Blue":         tee{Yardage: 6857, Par: 72, CourseRating: 73.8, SlopeRating: 142, Color: "Blue"},
				"White":        tee{Yardage: 6158, Par: 72, CourseRating: 71.4, SlopeRating: 127, Color: "White"},
			},
			Phone: "(904) 273-3230", Website: "https://tpc.com/sawgrass",
		},
		{
			Name: "Oakmont Country Club", City: "Oakmont", State: "PA", ZipCode: "15139",
			SlopeMin: 142, SlopeMax: 155, RatingMin: 75.4, RatingMax: 77.2,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7255, Par: 71, CourseRating: 77.2, SlopeRating: 155, Color: "Blue"},
			},
			Phone: "(412) 828-8000", Website: "https://www.oakmont-countryclub.org",
		},
		{
			Name: "Whistling Straits - Straits Course", City: "Haven", State: "WI", ZipCode: "53083",
			SlopeMin: 141, SlopeMax: 155, RatingMin: 74.3, RatingMax: 76.7,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7790, Par: 72, CourseRating: 76.7, SlopeRating: 155, Color: "Black"},
				"Blue":         tee{Yardage: 7362, Par: 72, CourseRating: 74.3, SlopeRating: 141, Color: "Blue"},
			},
			Phone: "(920) 565-6080", Website: "https://www.americanclubresort.com/golf",
		},
		{
			Name: "Chambers Bay Golf Course", City: "University Place", State: "WA", ZipCode: "98466",
			SlopeMin: 130, SlopeMax: 145, RatingMin: 73.1, RatingMax: 75.8,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7585, Par: 72, CourseRating: 75.8, SlopeRating: 145, Color: "Black"},
				"Blue":         tee{Yardage: 6877, Par: 72, CourseRating: 73.1, SlopeRating: 130, Color: "Blue"},
			},
			Phone: "(253) 305-4653", Website: "https://www.chambersbay.com",
		},
		{
			Name: "Kiawah Island - Ocean Course", City: "Kiawah Island", State: "SC", ZipCode: "29455",
			SlopeMin: 138, SlopeMax: 155, RatingMin: 74.4, RatingMax: 77.5,
			Tees: map[string]models.TeeDetail{
				"Championship": tee{Yardage: 7876, Par: 72, CourseRating: 77.5, SlopeRating: 155, Color: "Black"},
				"Blue":         tee{Yardage: 7356, Par: 72, CourseRating: 74.4, SlopeRating: 138, Color: "Blue"},
			},
			Phone: "(843) 266-4670", Website: "https://www.kiawahresort.com/golf",
		},
	}
}
