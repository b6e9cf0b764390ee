package ui

import "github.com/charmbracelet/lipgloss"

const (
	// Map glyphs
	glyphTower         = '▲'
	glyphTowerSelected = '◆'
	glyphZone          = '░'
	glyphGrid          = '·'

	// Map colors
	colorBackground = "236"
	colorGrid       = "238"
	colorZone       = "#22D3EE"
	colorSelected   = "229" // bright gold
	colorPending    = "#9D4EDD"
	colorLabel      = "250"

	colorSuccess = "#10B981"
	colorError   = "#E84A27"
	colorMuted   = "60"
	colorAccent  = "#9D4EDD"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("135"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)).Bold(true)
	zoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorZone))
	goldStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSelected))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError)).Bold(true)

	fieldStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	fieldFocusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorZone)).Underline(true)
)

var formStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color(colorZone)).
	Padding(0, 1)
