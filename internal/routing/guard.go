// Package routing decides which view a request gets from the auth state.
package routing

// Route is a client-visible path.
type Route string

const (
	RouteRoot       Route = "/"
	RouteLogin      Route = "/login"
	RouteDashboard  Route = "/dashboard"
	RouteUpload     Route = "/upload"
	RouteChat       Route = "/chat"
	RouteSummaries  Route = "/summaries"
	RouteFlashcards Route = "/flashcards"
	RouteQuizzes    Route = "/quizzes"
	RouteViewer     Route = "/viewer"
)

// ProtectedRoutes lists the dashboard and its sub-views.
var ProtectedRoutes = []Route{
	RouteDashboard,
	RouteUpload,
	RouteChat,
	RouteSummaries,
	RouteFlashcards,
	RouteQuizzes,
	RouteViewer,
}

// Public reports whether r is reachable without an identity.
func (r Route) Public() bool {
	return r == RouteRoot || r == RouteLogin
}

// Protected reports whether r is one of the dashboard views.
func (r Route) Protected() bool {
	for _, p := range ProtectedRoutes {
		if p == r {
			return true
		}
	}
	return false
}

type AuthState int

const (
	StateChecking AuthState = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// StateOf derives the guard state. It has no memory of earlier calls.
func StateOf(checked, hasIdentity bool) AuthState {
	switch {
	case !checked:
		return StateChecking
	case hasIdentity:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

type View string

const (
	ViewLoading    View = "loading"
	ViewLogin      View = "login"
	ViewDashboard  View = "dashboard"
	ViewUpload     View = "upload"
	ViewChat       View = "chat"
	ViewSummaries  View = "summaries"
	ViewFlashcards View = "flashcards"
	ViewQuizzes    View = "quizzes"
	ViewViewer     View = "viewer"
)

var protectedViews = map[Route]View{
	RouteDashboard:  ViewDashboard,
	RouteUpload:     ViewUpload,
	RouteChat:       ViewChat,
	RouteSummaries:  ViewSummaries,
	RouteFlashcards: ViewFlashcards,
	RouteQuizzes:    ViewQuizzes,
	RouteViewer:     ViewViewer,
}

// Decision is what the guard tells the router to do. Exactly one of View or
// Redirect is set.
type Decision struct {
	State    AuthState
	View     View
	Redirect Route
}

// Decide is a pure function of the auth-check flag, identity presence and
// the requested route.
func Decide(checked, hasIdentity bool, requested Route) Decision {
	state := StateOf(checked, hasIdentity)
	d := Decision{State: state}

	switch state {
	case StateChecking:
		d.View = ViewLoading
	case StateUnauthenticated:
		if requested.Public() {
			d.View = ViewLogin
		} else {
			d.Redirect = RouteLogin
		}
	case StateAuthenticated:
		if v, ok := protectedViews[requested]; ok {
			d.View = v
		} else {
			d.Redirect = RouteDashboard
		}
	}
	return d
}
