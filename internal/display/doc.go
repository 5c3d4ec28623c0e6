// Package display renders plans, weave outcomes, conflict resolutions and
// warnings for the terminal.
//
// Color is used only when the destination is a terminal:
//
//	useColor := display.UseColor(os.Stdout)
//	display.PlanTable(os.Stdout, plan, useColor)
//
// Every renderer writes plain text when useColor is false, so output can be
// piped or captured in tests.
package display
