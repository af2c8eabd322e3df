package logger

// Component name constants for standardized logging
const (
	// Core components
	ComponentEngine    = "Engine"
	ComponentScheduler = "Scheduler"

	// Optimization components
	ComponentOptimizer = "Optimizer"
	ComponentEvaluator = "Evaluator"
	ComponentReporter  = "Reporter"

	// FSM components
	ComponentJobFSM = "JobFSM"

	// Supporting components
	ComponentCatalog       = "Catalog"
	ComponentConfigManager = "ConfigManager"
	ComponentMetrics       = "Metrics"
)
