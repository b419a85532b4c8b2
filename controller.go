package apireg

// Controller is implemented by values that serve a class's endpoints.
// Embed BaseController to implement it.
type Controller interface {
	Class() *Class
	Endpoints() *Registry
}

// BaseController exposes the merged endpoint registry of a controller's class.
// It holds no endpoint state of its own.
type BaseController struct {
	class *Class
}

// NewBaseController returns a BaseController for class.
func NewBaseController(class *Class) BaseController {
	return BaseController{class: class}
}

// Class returns the controller's class.
func (b BaseController) Class() *Class { return b.class }

// Endpoints returns every endpoint visible from the controller's class,
// including inherited ones.
func (b BaseController) Endpoints() *Registry {
	if b.class == nil {
		return emptyRegistry
	}
	return b.class.Registry()
}
