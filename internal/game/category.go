package game

// Category is one of the five elemental-style creature types. Four of them
// form the effectiveness cycle Work > Learning > Creative > Health > Work;
// Personal sits outside the cycle and is neutral against everything.
type Category string

const (
	Work     Category = "work"
	Health   Category = "health"
	Learning Category = "learning"
	Creative Category = "creative"
	Personal Category = "personal"
)

// Categories lists all categories in a stable order.
func Categories() []Category {
	return []Category{Work, Health, Learning, Creative, Personal}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Work, Health, Learning, Creative, Personal:
		return true
	}
	return false
}

// StrongAgainst returns the category this one deals bonus damage to.
// Personal returns itself, meaning no bonus against anything.
func (c Category) StrongAgainst() Category {
	switch c {
	case Work:
		return Learning
	case Learning:
		return Creative
	case Creative:
		return Health
	case Health:
		return Work
	}
	return Personal
}

// WeakAgainst returns the category this one deals reduced damage to.
func (c Category) WeakAgainst() Category {
	switch c {
	case Work:
		return Health
	case Health:
		return Creative
	case Creative:
		return Learning
	case Learning:
		return Work
	}
	return Personal
}

// DisplayName returns the capitalized human-readable name.
func (c Category) DisplayName() string {
	switch c {
	case Work:
		return "Work"
	case Health:
		return "Health"
	case Learning:
		return "Learning"
	case Creative:
		return "Creative"
	case Personal:
		return "Personal"
	}
	return string(c)
}
