package main

import "github.com/charmbracelet/lipgloss"

const (
	sidebarWidth   = 20
	maxSuggestions = 6
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	badgeBase         = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0"))
	badgeDisconnected = badgeBase.Background(lipgloss.Color("9"))
	badgeConnected    = badgeBase.Background(lipgloss.Color("11"))
	badgeInRoom       = badgeBase.Background(lipgloss.Color("10"))

	sidebarStyle     = lipgloss.NewStyle().Width(sidebarWidth).PaddingLeft(1)
	sidebarTitle     = lipgloss.NewStyle().Bold(true).Underline(true)
	sidebarRoom      = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	sidebarRoomFocus = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))

	authorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ownStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	systemStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))

	suggestStyle    = lipgloss.NewStyle().PaddingLeft(4).Foreground(lipgloss.Color("7"))
	suggestSelected = lipgloss.NewStyle().PaddingLeft(2).Bold(true).Foreground(lipgloss.Color("14"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingLeft(1)
)
