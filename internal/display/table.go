package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/harrison/weaver/internal/models"
)

const maxCellFiles = 3

// PlanTable writes one row per batch, in level order.
func PlanTable(w io.Writer, plan *models.BatchPlan, useColor bool) {
	if plan == nil || len(plan.Batches) == 0 {
		fmt.Fprintln(w, "No batches.")
		return
	}
	rows := make([][]string, 0, len(plan.Batches))
	for _, b := range plan.Batches {
		id := b.ID
		if b.ForcePlaced {
			id += " *"
		}
		rows = append(rows, []string{
			strconv.Itoa(b.Level),
			id,
			strings.Join(b.TaskIDs, ", "),
			strconv.FormatFloat(b.CumulativeRisk, 'f', 4, 64),
			cellFiles(b.Files),
		})
	}
	render(w, []string{"LEVEL", "BATCH", "TASKS", "RISK", "FILES"}, rows, useColor)
	if hasForced(plan) {
		fmt.Fprintln(w, "* force-placed past the risk or batch cap")
	}
}

// IntersectionTable writes one row per intersection, in processing order.
func IntersectionTable(w io.Writer, ixs []models.Intersection, useColor bool) {
	if len(ixs) == 0 {
		fmt.Fprintln(w, "No intersections.")
		return
	}
	rows := make([][]string, 0, len(ixs))
	for _, ix := range ixs {
		rows = append(rows, []string{
			ix.ID,
			string(ix.Type),
			ix.SourceBatch + " -> " + ix.TargetBatch,
			ix.Location,
			string(ix.Priority),
			string(ix.Pattern),
		})
	}
	render(w, []string{"ID", "TYPE", "BATCHES", "LOCATION", "PRIORITY", "PATTERN"}, rows, useColor)
}

func render(w io.Writer, headers []string, rows [][]string, useColor bool) {
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell
	if useColor {
		header = header.Bold(true).Foreground(lipgloss.Color("6"))
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	fmt.Fprintln(w, t.Render())
}

func cellFiles(files []string) string {
	if len(files) <= maxCellFiles {
		return strings.Join(files, ", ")
	}
	return strings.Join(files[:maxCellFiles], ", ") + fmt.Sprintf(" (+%d)", len(files)-maxCellFiles)
}

func hasForced(plan *models.BatchPlan) bool {
	for _, b := range plan.Batches {
		if b.ForcePlaced {
			return true
		}
	}
	return false
}
