package team

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crewforge/crewforge/internal/agent"
)

// promptBuilder returns the prompt function for a role. Dispatch is
// over the task's tagged request kind; a missing request or a kind the
// role doesn't specialize falls back to the role's general template.
func promptBuilder(role Role, title string) func(*agent.Task) string {
	return func(task *agent.Task) string {
		kind := agent.KindGeneral
		var payload map[string]any
		if task.Request != nil {
			kind = task.Request.Kind
			payload = task.Request.Payload
		}
		if payload == nil {
			payload = task.Context
		}

		if tmpl, ok := specializedPrompts[role][kind]; ok {
			return fmt.Sprintf("As %s, %s:\n\n%s\n\nPlease provide:\n%s\n\n%s\n",
				memberArticle(role), tmpl.lead, renderPayload(payload), numbered(tmpl.asks), tmpl.focus)
		}
		return generalPrompt(role, title, task.Description, payload)
	}
}

// promptTemplate is one specialized prompt: the lead-in, the numbered
// asks, and a closing focus line.
type promptTemplate struct {
	lead  string
	asks  []string
	focus string
}

var specializedPrompts = map[Role]map[agent.RequestKind]promptTemplate{
	RoleProductStrategist: {
		agent.KindProjectAnalysis: {
			lead: "analyze this project definition",
			asks: []string{
				"Project viability assessment",
				"Strategic alignment check",
				"Market opportunity analysis",
				"Risk assessment",
				"Success metric recommendations",
				"Strategic recommendations",
			},
			focus: "Focus on business value, user needs, and market positioning.",
		},
		agent.KindFeaturePrioritization: {
			lead: "prioritize these features",
			asks: []string{
				"Prioritization framework and criteria",
				"Ranked feature list with rationale",
				"MVP recommendations",
				"Timeline considerations",
				"Resource allocation suggestions",
			},
			focus: "Consider user value, business impact, technical feasibility, and market timing.",
		},
		agent.KindRoadmap: {
			lead: "create a product roadmap for",
			asks: []string{
				"Strategic phases and milestones",
				"Timeline and dependencies",
				"Success criteria for each phase",
				"Risk mitigation strategies",
				"Resource requirements",
				"Market entry strategy",
			},
			focus: "Focus on achieving strategic objectives while managing risk and resources.",
		},
		agent.KindMarketAnalysis: {
			lead: "analyze this market data",
			asks: []string{
				"Market opportunity assessment",
				"Competitive landscape analysis",
				"Target user segments",
				"Positioning strategy",
				"Go-to-market recommendations",
				"Market entry timing",
			},
			focus: "Focus on strategic advantages and sustainable differentiation.",
		},
	},
	RoleTechnicalArchitect: {
		agent.KindSystemDesign: {
			lead: "design the system architecture for",
			asks: []string{
				"System architecture overview",
				"Component design and interactions",
				"Data flow and processes",
				"Technology stack recommendations",
				"Scalability considerations",
				"Security architecture",
				"Integration points",
			},
			focus: "Focus on maintainability, scalability, and performance.",
		},
		agent.KindTechnicalReview: {
			lead: "review this technical design",
			asks: []string{
				"Architecture assessment",
				"Strengths and weaknesses",
				"Scalability analysis",
				"Security considerations",
				"Performance implications",
				"Recommendations for improvement",
				"Risk assessment",
			},
			focus: "Be thorough and constructive in your review.",
		},
		agent.KindArchitectureDecision: {
			lead: "make an architecture decision for",
			asks: []string{
				"Options analysis with pros/cons",
				"Recommended approach with rationale",
				"Implementation considerations",
				"Risk mitigation strategies",
				"Long-term implications",
				"Success criteria",
			},
			focus: "Consider technical, business, and operational factors.",
		},
		agent.KindTechnologyEvaluation: {
			lead: "evaluate these technology options",
			asks: []string{
				"Technology comparison matrix",
				"Fit assessment for requirements",
				"Learning curve and expertise requirements",
				"Community support and ecosystem",
				"Long-term viability",
				"Recommendations with rationale",
			},
			focus: "Focus on alignment with project goals and constraints.",
		},
	},
	RoleUXDesigner: {
		agent.KindUserAnalysis: {
			lead: "analyze the user data",
			asks: []string{
				"User persona development",
				"User journey mapping",
				"Pain points and opportunities",
				"User needs and goals",
				"Design implications",
				"Research recommendations",
			},
			focus: "Focus on understanding and empathizing with users.",
		},
		agent.KindWorkflowDesign: {
			lead: "design user workflows for",
			asks: []string{
				"Workflow mapping and optimization",
				"User flow diagrams",
				"Interaction patterns",
				"Task completion strategies",
				"Error handling and recovery",
				"Efficiency improvements",
			},
			focus: "Focus on intuitive and efficient user experiences.",
		},
		agent.KindInterfaceDesign: {
			lead: "design the user interface for",
			asks: []string{
				"Information architecture",
				"Layout and organization",
				"Navigation design",
				"Interaction patterns",
				"Visual hierarchy",
				"Responsive design considerations",
			},
			focus: "Consider usability, accessibility, and aesthetic appeal.",
		},
		agent.KindUsabilityReview: {
			lead: "review the usability of",
			asks: []string{
				"Usability assessment",
				"Heuristic evaluation",
				"User friction points",
				"Improvement recommendations",
				"Accessibility audit",
				"Testing recommendations",
			},
			focus: "Focus on making the system easy and enjoyable to use.",
		},
	},
	RoleQualityEngineer: {
		agent.KindTestingStrategy: {
			lead: "define a testing strategy for",
			asks: []string{
				"Testing framework selection",
				"Test types and coverage requirements",
				"Test environment setup",
				"Automation strategy",
				"Quality gates and checkpoints",
				"Risk-based testing approach",
			},
			focus: "Focus on comprehensive quality assurance.",
		},
		agent.KindQualityReview: {
			lead: "review the quality of",
			asks: []string{
				"Quality assessment",
				"Defect analysis",
				"Compliance check",
				"Improvement recommendations",
				"Quality metrics",
				"Action items",
			},
			focus: "Be thorough and objective in your review.",
		},
		agent.KindAutomationPlan: {
			lead: "plan test automation for",
			asks: []string{
				"Automation framework selection",
				"Test automation roadmap",
				"Tool and technology recommendations",
				"Maintenance strategy",
				"ROI analysis",
				"Implementation timeline",
			},
			focus: "Focus on sustainable and effective automation.",
		},
		agent.KindQualityMetrics: {
			lead: "define quality metrics for",
			asks: []string{
				"Key quality indicators",
				"Measurement approaches",
				"Monitoring tools and processes",
				"Reporting mechanisms",
				"Threshold and alert settings",
				"Continuous improvement metrics",
			},
			focus: "Ensure metrics are meaningful and actionable.",
		},
	},
	RoleDevOpsSpecialist: {
		agent.KindInfrastructureDesign: {
			lead: "design infrastructure for",
			asks: []string{
				"Infrastructure architecture",
				"Cloud platform recommendations",
				"Resource sizing and scaling",
				"Network and security design",
				"Backup and disaster recovery",
				"Cost optimization strategies",
			},
			focus: "Focus on reliability, scalability, and cost-effectiveness.",
		},
		agent.KindPipelineDesign: {
			lead: "design a CI/CD pipeline for",
			asks: []string{
				"Pipeline architecture and stages",
				"Tool selection and integration",
				"Automation strategies",
				"Quality gates and approvals",
				"Deployment strategies",
				"Monitoring and rollback procedures",
			},
			focus: "Ensure efficient, reliable, and secure deployments.",
		},
		agent.KindDeploymentPlan: {
			lead: "plan deployment for",
			asks: []string{
				"Deployment strategy selection",
				"Environment management",
				"Release process and procedures",
				"Risk mitigation and rollback",
				"Monitoring and validation",
				"Communication and coordination",
			},
			focus: "Focus on smooth, reliable deployments.",
		},
		agent.KindMonitoringSetup: {
			lead: "set up monitoring for",
			asks: []string{
				"Monitoring architecture",
				"Key metrics and indicators",
				"Alerting strategies",
				"Dashboard design",
				"Log aggregation and analysis",
				"Performance optimization recommendations",
			},
			focus: "Ensure comprehensive system observability.",
		},
	},
}

// generalAsks is the fallback ask list per role.
var generalAsks = map[Role][]string{
	RoleProductStrategist: {
		"Strategic assessment",
		"Key considerations",
		"Recommended approach",
		"Success metrics",
		"Next steps",
	},
	RoleTechnicalArchitect: {
		"Technical assessment",
		"Architecture recommendations",
		"Technology choices",
		"Implementation considerations",
		"Performance and scalability analysis",
	},
	RoleUXDesigner: {
		"User experience assessment",
		"Design recommendations",
		"Workflow considerations",
		"Usability improvements",
		"Accessibility considerations",
	},
	RoleQualityEngineer: {
		"Quality assessment",
		"Testing recommendations",
		"Quality standards",
		"Risk mitigation",
		"Process improvements",
	},
	RoleDevOpsSpecialist: {
		"Infrastructure assessment",
		"Deployment recommendations",
		"Operational considerations",
		"Monitoring and alerting",
		"Security measures",
	},
}

// generalPrompt is the fallback template used when a task carries no
// specialized request.
func generalPrompt(role Role, title, description string, payload map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As the %s, please provide guidance on: %s\n", title, description)
	if len(payload) > 0 {
		fmt.Fprintf(&b, "\nContext: %s\n", renderPayload(payload))
	}
	fmt.Fprintf(&b, "\nPlease provide:\n%s", numbered(generalAsks[role]))
	return b.String()
}

// memberArticle phrases the role for the specialized lead-in.
func memberArticle(role Role) string {
	switch role {
	case RoleProductStrategist:
		return "Product Strategist"
	case RoleTechnicalArchitect:
		return "Technical Architect"
	case RoleUXDesigner:
		return "UX Designer"
	case RoleQualityEngineer:
		return "Quality Engineer"
	case RoleDevOpsSpecialist:
		return "DevOps Specialist"
	default:
		return string(role)
	}
}

func renderPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return b.String()
}
