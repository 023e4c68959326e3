package planner

import (
	"context"
	"fmt"

	"city-planner/backend/internal/budget"
	"city-planner/backend/internal/fetch"
	"city-planner/backend/internal/itinerary"
	"city-planner/backend/internal/workflow"
	"city-planner/backend/pkg/models"
)

// City planner step ids.
const (
	StepCityFacts       = "fetch-city-facts"
	StepWeather         = "fetch-weather"
	StepPlanningType    = "determine-planning-type"
	StepFullItinerary   = "create-full-itinerary"
	StepRecommendations = "generate-quick-recommendations"
	StepFormat          = "format-final-output"
)

// input reads a typed step input. A missing input is an error.
func input[T any](in workflow.Values, name string) (T, error) {
	v, ok := in[name].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("input %q missing or not a %T", name, zero)
	}
	return v, nil
}

// fetched turns a fetch result into step output, failing the step when no
// data came back.
func fetched[T any](key string, r fetch.Result[T]) (workflow.Values, error) {
	if !r.OK() {
		return nil, fmt.Errorf("%s: %s", r.Status, r.Message)
	}
	out := workflow.Values{key: r.Data, workflow.ReportSource: string(r.Source)}
	if r.Cached {
		out[workflow.ReportMessage] = "served from cache"
	}
	return out, nil
}

func (s *Service) buildCityGraph() (*workflow.Graph, error) {
	request := workflow.Trigger("request")
	identity := workflow.Trigger("identity")
	planningType := workflow.From(StepPlanningType, "planning_type")

	return workflow.NewBuilder("city-planner").
		WithConcurrency(s.fanOut).
		WithLogger(s.logger).
		Parallel(
			workflow.Step{
				ID:     StepCityFacts,
				Inputs: map[string]workflow.Binding{"request": request, "identity": identity},
				Run:    s.fetchCityFacts,
			},
			workflow.Step{
				ID:     StepWeather,
				Inputs: map[string]workflow.Binding{"request": request, "identity": identity},
				Run:    s.fetchWeather,
			},
		).
		Then(workflow.Step{
			ID:     StepPlanningType,
			Inputs: map[string]workflow.Binding{"request": request},
			Run:    determinePlanningType,
		}).
		Branch(planningType,
			[]any{models.PlanningFullItinerary, models.PlanningQuickRecommendations},
			workflow.Step{
				ID: StepFullItinerary,
				Inputs: map[string]workflow.Binding{
					"request": request,
					"facts":   workflow.From(StepCityFacts, "facts"),
					"weather": workflow.From(StepWeather, "weather"),
				},
				Gate: workflow.When(planningType, models.PlanningFullItinerary),
				Run:  s.createFullItinerary,
			},
			workflow.Step{
				ID: StepRecommendations,
				Inputs: map[string]workflow.Binding{
					"request": request,
					"weather": workflow.From(StepWeather, "weather"),
				},
				Gate: workflow.When(planningType, models.PlanningQuickRecommendations),
				Run:  s.generateQuickRecommendations,
			},
		).
		Then(workflow.Step{
			ID: StepFormat,
			Inputs: map[string]workflow.Binding{
				"request":         request,
				"facts":           workflow.From(StepCityFacts, "facts"),
				"weather":         workflow.From(StepWeather, "weather"),
				"planning_type":   planningType,
				"itinerary":       workflow.From(StepFullItinerary, "itinerary").OrAbsent(),
				"recommendations": workflow.From(StepRecommendations, "recommendations").OrAbsent(),
			},
			Run: s.formatFinalOutput,
		}).
		Build()
}

func (s *Service) fetchCityFacts(ctx context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	identity, _ := in["identity"].(string)
	r, err := s.CityFacts(ctx, identity, req.City)
	if err != nil {
		return nil, err
	}
	return fetched("facts", r)
}

func (s *Service) fetchWeather(ctx context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	identity, _ := in["identity"].(string)
	r, err := s.Weather(ctx, identity, Location{City: req.City, Country: req.Country})
	if err != nil {
		return nil, err
	}
	return fetched("weather", r)
}

func determinePlanningType(_ context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	pt, err := Classify(req)
	if err != nil {
		return nil, err
	}
	return workflow.Values{"planning_type": pt}, nil
}

func (s *Service) createFullItinerary(_ context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	facts, err := input[models.CityFacts](in, "facts")
	if err != nil {
		return nil, err
	}
	weather, err := input[models.Weather](in, "weather")
	if err != nil {
		return nil, err
	}

	style, err := budget.ParseStyle(string(req.Style))
	if err != nil {
		return nil, err
	}
	plan, err := itinerary.Build(itinerary.Input{
		City:      req.City,
		Facts:     facts,
		Weather:   weather,
		Budget:    budget.Allocate(req.Budget, style),
		Interests: req.Interests,
		Days:      req.Duration,
		Start:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build itinerary: %w", err)
	}
	return workflow.Values{"itinerary": plan}, nil
}

func (s *Service) generateQuickRecommendations(_ context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	weather, err := input[models.Weather](in, "weather")
	if err != nil {
		return nil, err
	}
	local := weather.LocalTime(s.now())
	set := itinerary.Recommend(req.City, weather, local.Hour(), req.Interests)
	return workflow.Values{"recommendations": set}, nil
}

func (s *Service) formatFinalOutput(_ context.Context, in workflow.Values) (workflow.Values, error) {
	req, err := input[models.PlanRequest](in, "request")
	if err != nil {
		return nil, err
	}
	facts, err := input[models.CityFacts](in, "facts")
	if err != nil {
		return nil, err
	}
	weather, err := input[models.Weather](in, "weather")
	if err != nil {
		return nil, err
	}
	pt, err := input[models.PlanningType](in, "planning_type")
	if err != nil {
		return nil, err
	}

	resp := models.PlanResponse{PlanningType: pt, City: s.cityData(req, facts, weather)}
	switch pt {
	case models.PlanningFullItinerary:
		plan, err := input[models.FullItinerary](in, "itinerary")
		if err != nil {
			return nil, err
		}
		resp.Itinerary = &plan
	case models.PlanningQuickRecommendations:
		set, err := input[models.RecommendationSet](in, "recommendations")
		if err != nil {
			return nil, err
		}
		resp.Recommendations = &set
	}
	return workflow.Values{"response": resp}, nil
}

func (s *Service) cityData(req models.PlanRequest, facts models.CityFacts, weather models.Weather) models.CityData {
	country := facts.Country
	if country == "" || country == "Unknown" {
		country = req.Country
	}
	return models.CityData{
		City:      req.City,
		Country:   country,
		Facts:     facts,
		Weather:   weather,
		LocalTime: weather.LocalTime(s.now()),
	}
}

// Plan runs the city planner. When a step fails the response holds what
// completed and the error is a *workflow.RunError.
func (s *Service) Plan(ctx context.Context, identity string, req models.PlanRequest) (*models.PlanResponse, error) {
	req, err := normalizePlan(req)
	if err != nil {
		return nil, err
	}

	run, runErr := s.cityGraph.Execute(ctx, workflow.Values{"request": req, "identity": identity})

	var resp models.PlanResponse
	if out, ok := run.Output(StepFormat); ok {
		resp, _ = out["response"].(models.PlanResponse)
	} else {
		resp = s.partialPlan(run, req)
	}
	resp.RunID = run.ID
	resp.Steps = run.Steps()

	if runErr != nil {
		s.logger.Warn("city plan incomplete", "city", req.City, "run_id", run.ID, "error", runErr)
		return &resp, runErr
	}
	s.logger.Info("city plan ready", "city", req.City, "run_id", run.ID, "planning_type", resp.PlanningType)
	return &resp, nil
}

func (s *Service) partialPlan(run *workflow.Run, req models.PlanRequest) models.PlanResponse {
	var (
		resp    models.PlanResponse
		facts   models.CityFacts
		weather models.Weather
	)
	if out, ok := run.Output(StepCityFacts); ok {
		facts, _ = out["facts"].(models.CityFacts)
	}
	if out, ok := run.Output(StepWeather); ok {
		weather, _ = out["weather"].(models.Weather)
	}
	resp.City = s.cityData(req, facts, weather)
	if out, ok := run.Output(StepPlanningType); ok {
		resp.PlanningType, _ = out["planning_type"].(models.PlanningType)
	}
	if out, ok := run.Output(StepFullItinerary); ok {
		if plan, ok := out["itinerary"].(models.FullItinerary); ok {
			resp.Itinerary = &plan
		}
	}
	if out, ok := run.Output(StepRecommendations); ok {
		if set, ok := out["recommendations"].(models.RecommendationSet); ok {
			resp.Recommendations = &set
		}
	}
	return resp
}
