package handlers

import "github.com/lumeno-study/lumeno/internal/routing"

// NavItem is one sidebar entry.
type NavItem struct {
	Label string
	Route routing.Route
	Icon  string
}

var NavItems = []NavItem{
	{Label: "Home", Route: routing.RouteDashboard, Icon: "home"},
	{Label: "PDF Upload", Route: routing.RouteUpload, Icon: "upload"},
	{Label: "AI Chat", Route: routing.RouteChat, Icon: "message-square"},
	{Label: "Summaries", Route: routing.RouteSummaries, Icon: "file-text"},
	{Label: "Flashcards", Route: routing.RouteFlashcards, Icon: "brain"},
	{Label: "Quizzes", Route: routing.RouteQuizzes, Icon: "check-square"},
	{Label: "PDF Viewer", Route: routing.RouteViewer, Icon: "eye"},
}

// FeatureCard is a dashboard tile.
type FeatureCard struct {
	Title       string
	Description string
	Label       string
	Route       routing.Route
}

var FeatureCards = []FeatureCard{
	{Title: "PDF Upload", Description: "Upload and manage your study materials", Label: "Documents", Route: routing.RouteUpload},
	{Title: "AI Chat", Description: "Ask questions about your PDFs", Label: "Interactive", Route: routing.RouteChat},
	{Title: "Summaries", Description: "Get instant AI-generated summaries", Label: "Quick Learn", Route: routing.RouteSummaries},
	{Title: "Flashcards", Description: "Create smart flashcards automatically", Label: "Memorize", Route: routing.RouteFlashcards},
	{Title: "Quizzes", Description: "Test your knowledge with AI quizzes", Label: "Practice", Route: routing.RouteQuizzes},
	{Title: "PDF Viewer", Description: "Read PDFs with AI assistance sidebar", Label: "Study Mode", Route: routing.RouteViewer},
}

// Decoration is everything the background effects take. Nothing reads
// back from them.
type Decoration struct {
	Palette   []string
	Intensity float64
}

var DefaultDecoration = Decoration{
	Palette:   []string{"#ec4899", "#a855f7", "#3b82f6"},
	Intensity: 0.6,
}

var viewTitles = map[routing.View]string{
	routing.ViewDashboard:  "Home",
	routing.ViewUpload:     "PDF Upload",
	routing.ViewChat:       "AI Chat",
	routing.ViewSummaries:  "Summaries",
	routing.ViewFlashcards: "Flashcards",
	routing.ViewQuizzes:    "Quizzes",
	routing.ViewViewer:     "PDF Viewer",
}
