// Package team assembles the Builder Team: the fixed roster of five
// advisory agents plus a coordinator, the sessions users hold with
// them, and the manager that routes input, fans work out, and writes
// the outcomes into the specification workspace.
package team

import (
	"fmt"

	"github.com/crewforge/crewforge/internal/agent"
	"github.com/crewforge/crewforge/internal/router"
)

// Role identifies one of the fixed advisory roles. The roster is
// closed: there is no mechanism to add roles at runtime.
type Role string

const (
	RoleProductStrategist  Role = "product-strategist"
	RoleTechnicalArchitect Role = "technical-architect"
	RoleUXDesigner         Role = "ux-designer"
	RoleQualityEngineer    Role = "quality-engineer"
	RoleDevOpsSpecialist   Role = "devops-specialist"
)

// ResolveRole maps a member name or role string to its Role.
func ResolveRole(name string) (Role, error) {
	switch name {
	case "ProductStrategist", string(RoleProductStrategist):
		return RoleProductStrategist, nil
	case "TechnicalArchitect", string(RoleTechnicalArchitect):
		return RoleTechnicalArchitect, nil
	case "UXDesigner", string(RoleUXDesigner):
		return RoleUXDesigner, nil
	case "QualityEngineer", string(RoleQualityEngineer):
		return RoleQualityEngineer, nil
	case "DevOpsSpecialist", string(RoleDevOpsSpecialist):
		return RoleDevOpsSpecialist, nil
	default:
		return "", fmt.Errorf("unknown team role %q", name)
	}
}

// FallbackMember receives input that matches no member's keywords.
const FallbackMember = "ProductStrategist"

// Definition describes one roster member.
type Definition struct {
	Role             Role
	Name             string
	Title            string
	Personality      string
	Responsibilities []string
	Keywords         []string

	// Framework is seeded into the member's long-term memory at startup
	// under "<memory key>_framework".
	Framework map[string]string
}

// Definitions returns the full roster in its canonical order.
func Definitions() []Definition {
	return []Definition{
		{
			Role:        RoleProductStrategist,
			Name:        "ProductStrategist",
			Title:       "Product Vision and Strategic Planning",
			Personality: "ENTJ",
			Responsibilities: []string{
				"Define project roadmap and milestones",
				"Make strategic decisions on feature prioritization",
				"Coordinate between advisory and application teams",
				"Validate business logic implementation",
				"Analyze market requirements and user needs",
				"Define success metrics and KPIs",
			},
			Keywords: []string{
				"strategy", "vision", "goal", "market", "business", "user", "requirement",
				"feature", "priority", "roadmap", "mvp", "stakeholder", "value",
			},
			Framework: map[string]string{
				"vision":       "long-term product goals and market positioning",
				"strategy":     "approach to achieve product goals",
				"roadmap":      "timeline and milestones for product development",
				"metrics":      "success measures and KPIs",
				"stakeholders": "key users and their needs",
			},
		},
		{
			Role:        RoleTechnicalArchitect,
			Name:        "TechnicalArchitect",
			Title:       "System Design and Technical Strategy",
			Personality: "INTJ",
			Responsibilities: []string{
				"Design overall system architecture",
				"Make technical decisions and trade-offs",
				"Review and approve technical implementations",
				"Ensure scalability and performance requirements",
				"Define technical standards and best practices",
				"Evaluate technology choices and integrations",
			},
			Keywords: []string{
				"technical", "architecture", "system", "design", "technology", "stack",
				"api", "database", "scalability", "performance", "security", "integration",
			},
			Framework: map[string]string{
				"architecture": "system structure and design patterns",
				"scalability":  "approach to handle growth",
				"performance":  "optimization strategies",
				"security":     "security measures and best practices",
				"integration":  "how components connect and communicate",
			},
		},
		{
			Role:        RoleUXDesigner,
			Name:        "UXDesigner",
			Title:       "User Experience and Interface Design",
			Personality: "ENFP",
			Responsibilities: []string{
				"Design user interactions and workflows",
				"Create wireframes and prototypes",
				"Ensure accessibility and usability",
				"Validate user experience implementation",
				"Conduct user research and analysis",
				"Design intuitive and engaging interfaces",
			},
			// "design" routes to the architect, not here.
			Keywords: []string{
				"ux", "interface", "user experience", "workflow", "interaction",
				"wireframe", "prototype", "usability", "accessibility", "visual",
			},
			Framework: map[string]string{
				"user_research":      "understanding user needs and behaviors",
				"interaction_design": "how users interact with the system",
				"visual_design":      "aesthetics and visual communication",
				"usability":          "ease of use and learning",
				"accessibility":      "inclusive design for all users",
			},
		},
		{
			Role:        RoleQualityEngineer,
			Name:        "QualityEngineer",
			Title:       "Quality Assurance and Testing Strategy",
			Personality: "ISTJ",
			Responsibilities: []string{
				"Define testing strategies and frameworks",
				"Review code quality and standards",
				"Implement automated testing pipelines",
				"Ensure reliability and stability",
				"Monitor system quality metrics",
				"Establish quality gates and standards",
			},
			Keywords: []string{
				"quality", "test", "testing", "qa", "automation", "standards", "review",
				"metrics", "reliability", "bug", "defect", "coverage",
			},
			Framework: map[string]string{
				"testing_strategy":       "approach to ensuring quality",
				"automation":             "automated testing and processes",
				"standards":              "coding and quality standards",
				"metrics":                "quality measurement and monitoring",
				"continuous_improvement": "process optimization",
			},
		},
		{
			Role:        RoleDevOpsSpecialist,
			Name:        "DevOpsSpecialist",
			Title:       "Infrastructure and Deployment",
			Personality: "ISTP",
			Responsibilities: []string{
				"Set up CI/CD pipelines",
				"Manage deployment infrastructure",
				"Monitor system performance and health",
				"Implement security and compliance measures",
				"Optimize system operations",
				"Ensure reliability and availability",
			},
			Keywords: []string{
				"devops", "deployment", "infrastructure", "ci/cd", "monitoring", "security",
				"operations", "scaling", "performance", "backup", "recovery",
			},
			Framework: map[string]string{
				"infrastructure": "system deployment and hosting",
				"automation":     "CI/CD and operational automation",
				"monitoring":     "system health and performance monitoring",
				"security":       "infrastructure and operational security",
				"reliability":    "system availability and disaster recovery",
			},
		},
	}
}

// KeywordTable builds the routing table from the roster definitions.
func KeywordTable() router.Table {
	table := make(router.Table)
	for _, def := range Definitions() {
		table[def.Name] = def.Keywords
	}
	return table
}

// AgentConfig converts a roster definition into an agent configuration
// bound to the given provider.
func (d Definition) AgentConfig(providerName string, window, queueCap int) agent.Config {
	return agent.Config{
		Name:             d.Name,
		Role:             d.Title,
		Personality:      d.Personality,
		Provider:         providerName,
		Responsibilities: d.Responsibilities,
		MemoryWindow:     window,
		QueueCapacity:    queueCap,
		PromptFunc:       promptBuilder(d.Role, d.Title),
	}
}
