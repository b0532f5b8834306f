package store

// NotFoundError indicates that a referenced remote resource does not exist.
type NotFoundError struct {
	// Store is the name of the backend that reported the miss.
	Store string

	// Name is the resource identifier that could not be found.
	Name string
}

func (e NotFoundError) Error() string {
	return "resource not found: " + e.Name + " in " + e.Store
}

// AlreadyExistsError indicates a create collided with an existing resource.
//
// The reconciler treats this as "created concurrently by another operator"
// and falls back to AddVersion; it is the backend's create-is-exclusive
// semantics acting as the de facto cross-run concurrency control.
type AlreadyExistsError struct {
	Store string
	Name  string
}

func (e AlreadyExistsError) Error() string {
	return "resource already exists: " + e.Name + " in " + e.Store
}

// AuthError indicates the backend rejected the caller's credentials.
type AuthError struct {
	Store   string
	Message string
}

func (e AuthError) Error() string {
	return "authentication failed for " + e.Store + ": " + e.Message
}
