package registry

import (
	"fmt"
	"strings"

	"github.com/gateflow/gateflow/pkg/models"
)

// ValidateDefinition checks the structural invariants of a definition graph:
// exactly one initial state, unique state names, transition endpoints inside
// the same definition, no transitions out of terminal states, every state
// reachable from the initial state, and well-formed rule trees.
func ValidateDefinition(definition *models.WorkflowDefinition) error {
	if definition == nil {
		return fmt.Errorf("%w: definition is nil", ErrDefinitionInvalid)
	}

	findings := make([]string, 0)

	if definition.EntityType == "" {
		findings = append(findings, "entity type is required")
	}

	if len(definition.States) == 0 {
		findings = append(findings, "definition has no states")
	}

	statesByID := make(map[string]*models.WorkflowState, len(definition.States))
	namesSeen := make(map[string]struct{}, len(definition.States))
	initialCount := 0

	for _, state := range definition.States {
		if state.ID == "" {
			findings = append(findings, "state with empty id")

			continue
		}

		if _, duplicate := statesByID[state.ID]; duplicate {
			findings = append(findings, fmt.Sprintf("duplicate state id %q", state.ID))
		}

		statesByID[state.ID] = state

		if _, duplicate := namesSeen[state.Name]; duplicate {
			findings = append(findings, fmt.Sprintf("duplicate state name %q", state.Name))
		}

		namesSeen[state.Name] = struct{}{}

		if state.IsInitial {
			initialCount++

			if state.IsTerminal {
				findings = append(findings, fmt.Sprintf("state %q is both initial and terminal", state.ID))
			}
		}

		for _, action := range state.EntryRules {
			if err := action.Validate(); err != nil {
				findings = append(findings, fmt.Sprintf("state %q entry rule: %v", state.ID, err))
			}
		}
	}

	if initialCount != 1 {
		findings = append(findings, fmt.Sprintf("definition must have exactly one initial state, found %d", initialCount))
	}

	adjacency := make(map[string][]string)

	for _, transition := range definition.Transitions {
		if transition.ID == "" {
			findings = append(findings, "transition with empty id")

			continue
		}

		from, fromOK := statesByID[transition.FromStateID]
		if !fromOK {
			findings = append(findings, fmt.Sprintf("transition %q references unknown from state %q", transition.ID, transition.FromStateID))
		}

		if _, toOK := statesByID[transition.ToStateID]; !toOK {
			findings = append(findings, fmt.Sprintf("transition %q references unknown to state %q", transition.ID, transition.ToStateID))
		}

		if fromOK && from.IsTerminal {
			findings = append(findings, fmt.Sprintf("transition %q originates in terminal state %q", transition.ID, transition.FromStateID))
		}

		if err := transition.ValidationRules.Validate(); err != nil {
			findings = append(findings, fmt.Sprintf("transition %q validation rules: %v", transition.ID, err))
		}

		for _, action := range transition.AutomationRules {
			if err := action.Validate(); err != nil {
				findings = append(findings, fmt.Sprintf("transition %q automation rule: %v", transition.ID, err))
			}
		}

		for _, approver := range transition.Approvers {
			if approver == nil || approver.ID == "" {
				findings = append(findings, fmt.Sprintf("transition %q has an approver without an id", transition.ID))

				continue
			}

			switch approver.Type {
			case models.ApproverRole, models.ApproverUser, models.ApproverGroup:
			default:
				findings = append(findings, fmt.Sprintf("transition %q has unknown approver type %q", transition.ID, approver.Type))
			}
		}

		adjacency[transition.FromStateID] = append(adjacency[transition.FromStateID], transition.ToStateID)
	}

	if err := definition.InstanceRules.Validate(); err != nil {
		findings = append(findings, fmt.Sprintf("instance rules: %v", err))
	}

	if initialCount == 1 && len(findings) == 0 {
		for _, unreachable := range unreachableStates(definition, adjacency) {
			findings = append(findings, fmt.Sprintf("state %q is unreachable from the initial state", unreachable))
		}
	}

	if len(findings) > 0 {
		return fmt.Errorf("%w: %s", ErrDefinitionInvalid, strings.Join(findings, "; "))
	}

	return nil
}

// unreachableStates walks the transition graph from the initial state and
// returns the IDs of states no path reaches.
func unreachableStates(definition *models.WorkflowDefinition, adjacency map[string][]string) []string {
	initial := definition.InitialState()
	if initial == nil {
		return nil
	}

	visited := map[string]struct{}{initial.ID: {}}
	frontier := []string{initial.ID}

	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		for _, next := range adjacency[current] {
			if _, seen := visited[next]; seen {
				continue
			}

			visited[next] = struct{}{}
			frontier = append(frontier, next)
		}
	}

	unreachable := make([]string, 0)

	for _, state := range definition.States {
		if _, seen := visited[state.ID]; !seen {
			unreachable = append(unreachable, state.ID)
		}
	}

	return unreachable
}
