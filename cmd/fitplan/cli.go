package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/journal"
	"github.com/dkazarov/fitplan/internal/macro"
	"github.com/dkazarov/fitplan/internal/product"
	"github.com/dkazarov/fitplan/internal/rollover"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(eng *engine) *cli.App {
	app := &cli.App{
		Name:    "fitplan",
		Usage:   "Food search and daily nutrition log",
		Version: Version,
		Commands: []*cli.Command{
			searchCmd(eng),
			productCmd(eng),
			mealCmd(eng),
			summaryCmd(eng),
			rolloverCmd(eng),
			archiveCmd(eng),
			goalsCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// userFlag selects the log owner; defaults come from config.
func userFlag(eng *engine) *cli.Int64Flag {
	var def int64 = 1
	if eng != nil && eng.cfg != nil {
		def = eng.cfg.DefaultUserID
	}
	return &cli.Int64Flag{Name: "user", Aliases: []string{"u"}, Value: def, Usage: "User id"}
}

// searchCmd creates the search command.
func searchCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Resolve a free-text food query against the catalog and the remote provider",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return outputError(errors.NewInvalidRequest("query is required"))
			}

			products, err := eng.coord.Resolve(c.Context, query)
			if err != nil {
				return outputError(err)
			}
			if products == nil {
				products = []product.Product{}
			}

			return outputJSON(map[string]any{
				"query":    query,
				"products": products,
			})
		},
	}
}

// productCmd creates the product command group.
func productCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "product",
		Usage: "Inspect and add catalog products",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Look up a product by name, or by id with --id",
				ArgsUsage: "[name]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Product id"},
				},
				Action: func(c *cli.Context) error {
					if id := c.String("id"); id != "" {
						p, err := eng.catalog.FindByID(c.Context, id)
						if err != nil {
							return outputError(err)
						}
						return outputJSON(p)
					}

					name := strings.Join(c.Args().Slice(), " ")
					p, err := eng.coord.ResolveByName(c.Context, name)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(p)
				},
			},
			{
				Name:  "add",
				Usage: "Add a product to the catalog (per-100g values)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Product name"},
					&cli.Float64Flag{Name: "calories", Required: true, Usage: "kcal per 100g"},
					&cli.Float64Flag{Name: "protein", Usage: "Protein g per 100g"},
					&cli.Float64Flag{Name: "fat", Usage: "Fat g per 100g"},
					&cli.Float64Flag{Name: "carbs", Usage: "Carbs g per 100g"},
					&cli.StringFlag{Name: "brand", Usage: "Brand (optional)"},
					&cli.StringFlag{Name: "barcode", Usage: "Barcode (optional)"},
				},
				Action: func(c *cli.Context) error {
					id, err := eng.catalog.InsertIfAbsent(c.Context, product.Product{
						Name:     c.String("name"),
						Calories: c.Float64("calories"),
						Protein:  c.Float64("protein"),
						Fat:      c.Float64("fat"),
						Carbs:    c.Float64("carbs"),
						Brand:    c.String("brand"),
						Barcode:  c.String("barcode"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]string{"id": id})
				},
			},
		},
	}
}

// mealCmd creates the meal command group.
func mealCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "meal",
		Usage: "Manage today's nutrition log",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Log a product under a meal type",
				Flags: []cli.Flag{
					userFlag(eng),
					&cli.StringFlag{Name: "product", Aliases: []string{"p"}, Required: true, Usage: "Product id"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "Meal type: breakfast|lunch|dinner|snack"},
					&cli.IntFlag{Name: "grams", Aliases: []string{"g"}, Required: true, Usage: "Quantity in grams"},
				},
				Action: func(c *cli.Context) error {
					entry, err := eng.journal.Add(c.Context, journal.AddInput{
						UserID:        c.Int64("user"),
						ProductID:     c.String("product"),
						MealType:      journal.MealType(c.String("type")),
						QuantityGrams: c.Int("grams"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(entry)
				},
			},
			{
				Name:  "list",
				Usage: "List today's entries, optionally for one meal type",
				Flags: []cli.Flag{
					userFlag(eng),
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Meal type filter"},
				},
				Action: func(c *cli.Context) error {
					var entries []journal.Entry
					var err error
					if mealType := c.String("type"); mealType != "" {
						entries, err = eng.journal.ListByMeal(c.Context, c.Int64("user"), journal.MealType(mealType))
					} else {
						entries, err = eng.journal.ListToday(c.Context, c.Int64("user"))
					}
					if err != nil {
						return outputError(err)
					}
					if entries == nil {
						entries = []journal.Entry{}
					}
					return outputJSON(map[string]any{"entries": entries})
				},
			},
			{
				Name:      "update",
				Usage:     "Change an entry's quantity, rescaling its macros",
				ArgsUsage: "<entry-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "grams", Aliases: []string{"g"}, Required: true, Usage: "New quantity in grams"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("entry id is required"))
					}
					entry, err := eng.journal.UpdateQuantity(c.Context, c.Args().First(), c.Int("grams"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(entry)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a log entry",
				ArgsUsage: "<entry-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return outputError(errors.NewInvalidRequest("entry id is required"))
					}
					if err := eng.journal.Delete(c.Context, c.Args().First()); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]bool{"deleted": true})
				},
			},
			{
				Name:  "clear",
				Usage: "Delete all of today's entries",
				Flags: []cli.Flag{userFlag(eng)},
				Action: func(c *cli.Context) error {
					deleted, err := eng.journal.ClearToday(c.Context, c.Int64("user"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]int64{"deleted": deleted})
				},
			},
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Aggregate today's macros, optionally per meal type",
		Flags: []cli.Flag{
			userFlag(eng),
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Meal type filter"},
		},
		Action: func(c *cli.Context) error {
			var sum *journal.Summary
			var err error
			if mealType := c.String("type"); mealType != "" {
				sum, err = eng.journal.MealSummary(c.Context, c.Int64("user"), journal.MealType(mealType))
			} else {
				sum, err = eng.journal.DailySummary(c.Context, c.Int64("user"))
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(sum)
		},
	}
}

// rolloverCmd creates the rollover command.
func rolloverCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "rollover",
		Usage: "Archive entries from past days if the calendar day has changed",
		Flags: []cli.Flag{userFlag(eng)},
		Action: func(c *cli.Context) error {
			result, err := eng.rollover.Check(c.Context, c.Int64("user"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(result)
		},
	}
}

// archiveCmd creates the archive command.
func archiveCmd(eng *engine) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "List archived entries, newest first",
		Flags: []cli.Flag{
			userFlag(eng),
			&cli.StringFlag{Name: "from", Usage: "Earliest logged date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Exclusive latest logged date (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			from, err := parseDate(c.String("from"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			to, err := parseDate(c.String("to"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			entries, err := eng.rollover.ListArchive(c.Context, c.Int64("user"), from, to)
			if err != nil {
				return outputError(err)
			}
			if entries == nil {
				entries = []rollover.ArchivedEntry{}
			}
			return outputJSON(map[string]any{"entries": entries})
		},
	}
}

// goalsCmd creates the goals command. Pure calculation, no DB.
func goalsCmd() *cli.Command {
	return &cli.Command{
		Name:  "goals",
		Usage: "Compute daily calorie and macro targets from a profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sex", Required: true, Usage: "male|female"},
			&cli.IntFlag{Name: "age", Required: true, Usage: "Age in years"},
			&cli.Float64Flag{Name: "height", Required: true, Usage: "Height in cm"},
			&cli.Float64Flag{Name: "weight", Required: true, Usage: "Weight in kg"},
			&cli.StringFlag{Name: "activity", Value: "moderate", Usage: "sedentary|light|moderate|active|very_active"},
			&cli.StringFlag{Name: "goal", Value: "maintain", Usage: "lose|maintain|gain"},
		},
		Action: func(c *cli.Context) error {
			goals, err := macro.Calculate(macro.Profile{
				Sex:      macro.Sex(c.String("sex")),
				Age:      c.Int("age"),
				HeightCm: c.Float64("height"),
				WeightKg: c.Float64("weight"),
				Activity: macro.ActivityLevel(c.String("activity")),
				Goal:     macro.Goal(c.String("goal")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(goals)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if engErr, ok := err.(*errors.EngineError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", engErr.Code, engErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDate parses a YYYY-MM-DD date in local time; empty input is the zero
// time (unbounded).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
