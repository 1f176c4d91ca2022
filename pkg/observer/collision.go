package observer

// DetectCollision decides whether ped was hit by a vehicle in reg during the current frame.
//
// The first vehicle (in first-seen order) whose box holds the pedestrian's latest
// bottom-left corner or bottom-centre point is the only candidate. The hit is
// reported when that vehicle is moving and the pedestrian's recent path holds at
// least cfg.MinAnomalies anomalous steps. The bottom-right corner is not tested.
func DetectCollision(reg *Registry, ped *TrackedPedestrian, cfg MotionConfig) (vehicleID int, ok bool) {
	if len(ped.Points) == 0 {
		return 0, false
	}
	left, bottom := ped.LastLeft(), ped.Last()

	var hit *TrackedVehicle
	reg.EachVehicle(func(id int, v *TrackedVehicle) bool {
		if v.Box.Contains(left) || v.Box.Contains(bottom) {
			hit, vehicleID = v, id
			return false
		}
		return true
	})
	if hit == nil {
		return 0, false
	}

	if !IsMoving(hit.Points, cfg.Interval, cfg.MaxIter, cfg.MinMovement) {
		return vehicleID, false
	}
	if CountAnomalies(ped.Points, cfg) < cfg.MinAnomalies {
		return vehicleID, false
	}
	return vehicleID, true
}
