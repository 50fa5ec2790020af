package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parcellink/internal/report"
	"parcellink/internal/types"
)

const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

func reviewCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Browse flagged and unmapped buildings",
		Long: `Run the mapping and list every flagged or unmapped building. On a terminal
the list is interactive: ↑/↓ to move, Enter for details (and to mark the
building as reviewed), Esc to quit. Reviewed buildings are hidden unless
--all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, res, err := a.resolveAll()
			if err != nil {
				return err
			}

			reviewedPath := a.outPath(reviewedFile)
			reviewed, err := loadReviewed(reviewedPath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", reviewedPath, err)
			}

			byStruct := make(map[string][]types.BuildingAssessment)
			for _, r := range res.Joined {
				byStruct[r.StructID] = append(byStruct[r.StructID], r)
			}

			var (
				queue []types.Mapping
				lines []string
			)
			for _, r := range report.FlaggedRows(res.Mappings) {
				if reviewed[r.StructID] && !all {
					continue
				}
				queue = append(queue, r)
				lines = append(lines, reviewLine(r, reviewed[r.StructID]))
			}
			if len(queue) == 0 {
				fmt.Println("No flagged buildings to review.")
				return nil
			}

			if !term.IsTerminal(int(os.Stdin.Fd())) {
				for _, l := range lines {
					fmt.Println(l)
				}
				return nil
			}

			interactiveSelect(lines, func(i int) {
				r := queue[i]
				renderBuilding(r, byStruct[r.StructID])
				if promptYes("Mark as reviewed? (y/N): ") {
					if err := saveReviewed(reviewedPath, r.StructID); err != nil {
						fmt.Printf("Failed to save: %v\n", err)
						return
					}
					lines[i] = reviewLine(r, true)
					fmt.Println("Marked.")
				}
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include buildings already marked as reviewed")
	return cmd
}

func reviewLine(r types.Mapping, reviewed bool) string {
	flag := string(r.Flag)
	if flag == "" {
		flag = string(r.Provenance)
	}
	mark := " "
	if reviewed {
		mark = "✓"
	}
	return fmt.Sprintf("%s %-16s | %-28s | official %-12s | %8.0f sqft",
		mark, r.StructID, flag, deref(r.OfficialID), r.AreaSqFt)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// renderBuilding prints every mapping row of one building with the joined
// assessment.
func renderBuilding(r types.Mapping, rows []types.BuildingAssessment) {
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("Structure         : %s\n", r.StructID)
	fmt.Printf("Local ID          : %s\n", deref(r.LocalID))
	fmt.Printf("Source            : %s\n", r.Source)
	fmt.Printf("Area (sqft)       : %.0f\n", r.AreaSqFt)
	if r.Flag != types.FlagNone {
		fmt.Printf("Flag              : %s%s%s\n", colorRed, r.Flag, colorReset)
	}
	if r.OfficialID != nil {
		note := ""
		if r.Flag == types.FlagOfficialIDNotInParcels {
			note = fmt.Sprintf(" %s[not in parcel layer]%s", colorRed, colorReset)
		}
		fmt.Printf("Official parcel   : %s%s\n", *r.OfficialID, note)
	}
	fmt.Println()

	for _, row := range rows {
		if row.ParcelID == nil {
			fmt.Println("No intersecting parcel")
			continue
		}
		fmt.Printf("Parcel            : %s%s%s (%s)\n", colorGreen, *row.ParcelID, colorReset, row.Provenance)
		fmt.Printf("  LOC_ID          : %s\n", row.ParcelLocID)
		a := row.Assessment
		if a == nil {
			fmt.Println("  No assessment on file")
			continue
		}
		fmt.Printf("  Fiscal Year     : %d\n", a.FiscalYear)
		fmt.Printf("  Total Value     : %s\n", money(a.TotalValue))
		fmt.Printf("    Building      : %s\n", money(a.BuildingValue))
		fmt.Printf("    Land          : %s\n", money(a.LandValue))
		fmt.Printf("  Use Code        : %s\n", a.UseCode)
		fmt.Printf("  Owners          : %s\n", strings.Join(a.OwnerNames, "; "))
		fmt.Printf("  Site Address    : %s\n", a.SiteAddress)
	}
	fmt.Println(strings.Repeat("-", 80))
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.0f", *v)
}

func promptYes(prompt string) bool {
	fmt.Print(prompt)
	resp, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	resp = strings.ToLower(strings.TrimSpace(resp))
	return resp == "y" || resp == "yes"
}
