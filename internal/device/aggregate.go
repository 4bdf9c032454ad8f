package device

// View is the derived summary consumed by presentation layers.
type View struct {
	Devices []Status `json:"devices"`
	Open    []Status `json:"open"`
}

// OpenCount returns the number of devices that are online and open.
func (v View) OpenCount() int { return len(v.Open) }

// Aggregate computes the view from the given statuses. It never caches: the
// result reflects exactly the statuses passed in.
func Aggregate(statuses []Status) View {
	view := View{
		Devices: make([]Status, len(statuses)),
		Open:    []Status{},
	}
	copy(view.Devices, statuses)
	for _, s := range statuses {
		if s.Online && s.Open {
			view.Open = append(view.Open, s)
		}
	}
	return view
}

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	out := View{
		Devices: make([]Status, len(v.Devices)),
		Open:    make([]Status, len(v.Open)),
	}
	copy(out.Devices, v.Devices)
	copy(out.Open, v.Open)
	return out
}
