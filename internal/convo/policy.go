package convo

// ApplyRelation prunes a copy of the last state according to the relation,
// before the planner reads it. Dates always survive: date intent is the
// extractor's concern, not the relation's.
//
//	refine            inherit metrics, dimensions, dates
//	metric_switch     drop metrics
//	dimension_switch  drop dimensions
//	new_topic         drop metrics and dimensions
func ApplyRelation(relation Relation, last *State) *State {
	if last == nil {
		return nil
	}
	out := last.Clone()

	switch relation {
	case RelationRefine:
		// keep everything
	case RelationMetricSwitch:
		out.Metrics = nil
	case RelationDimensionSwitch:
		out.Dimensions = nil
	default:
		// new_topic and anything unknown: the safe default.
		out.Metrics = nil
		out.Dimensions = nil
		out.EventFilter = ""
		out.LastEntity = ""
	}
	return out
}
