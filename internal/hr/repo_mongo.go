package hr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"
	"hr-platform/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepo struct {
	client    *mongo.Client
	employees *mongo.Collection
	teams     *mongo.Collection
}

func NewMongoRepo(client *mongo.Client, db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		client:    client,
		employees: db.Collection("employees"),
		teams:     db.Collection("teams"),
	}
}

func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	if _, err := r.employees.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "team_ids", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("employees indexes: %w", err)
	}
	if _, err := r.teams.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("teams indexes: %w", err)
	}
	return nil
}

func byID(scope tenant.Scope, id string) bson.M {
	return bson.M(scope.Bind(tenant.Filter{"_id": id}))
}

func mapMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	}
	return err
}

// inTx runs fn in a transaction, or directly when the deployment has none.
func (r *MongoRepo) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := utils.WithMongoTx(ctx, r.client, fn)
	if errors.Is(err, utils.ErrTxnNotSupported) {
		err = fn(ctx)
	}
	return err
}

func (r *MongoRepo) CreateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	e.OrganizationID = scope.OrganizationID()
	_, err := r.employees.InsertOne(ctx, e)
	return mapMongoErr(err)
}

func (r *MongoRepo) GetEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	var e Employee
	if err := r.employees.FindOne(ctx, byID(scope, id)).Decode(&e); err != nil {
		return Employee{}, mapMongoErr(err)
	}
	if e.TeamIDs == nil {
		e.TeamIDs = []string{}
	}
	return e, nil
}

func (r *MongoRepo) UpdateEmployee(ctx context.Context, scope tenant.Scope, e Employee) error {
	set := bson.M{
		"first_name": e.FirstName,
		"last_name":  e.LastName,
		"email":      e.Email,
		"phone":      e.Phone,
		"department": e.Department,
		"position":   e.Position,
		"salary":     e.Salary,
		"address":    e.Address,
		"is_active":  e.IsActive,
		"updated_at": e.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if e.HireDate != nil {
		set["hire_date"] = *e.HireDate
	} else {
		update["$unset"] = bson.M{"hire_date": ""}
	}
	res, err := r.employees.UpdateOne(ctx, byID(scope, e.ID), update)
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) DeleteEmployee(ctx context.Context, scope tenant.Scope, id string) (Employee, error) {
	var out Employee
	err := r.inTx(ctx, func(ctx context.Context) error {
		var e Employee
		if err := r.employees.FindOneAndDelete(ctx, byID(scope, id)).Decode(&e); err != nil {
			return mapMongoErr(err)
		}
		orgTeams := bson.M(scope.Bind(tenant.Filter{"member_ids": id}))
		if _, err := r.teams.UpdateMany(ctx, orgTeams, bson.M{"$pull": bson.M{"member_ids": id}}); err != nil {
			return err
		}
		led := bson.M(scope.Bind(tenant.Filter{"team_lead_id": id}))
		if _, err := r.teams.UpdateMany(ctx, led, bson.M{"$unset": bson.M{"team_lead_id": ""}}); err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

// searchRegex matches s literally, case-insensitively.
func searchRegex(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

func searchFilter(scope tenant.Scope, search string, fields ...string) tenant.Filter {
	f := tenant.Filter{}
	if search != "" {
		ors := make(bson.A, 0, len(fields))
		for _, name := range fields {
			ors = append(ors, bson.M{name: searchRegex(search)})
		}
		f["$or"] = ors
	}
	return scope.Bind(f)
}

func pageOptions(page, limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset(page, limit))).
		SetLimit(int64(limit))
}

func (r *MongoRepo) ListEmployees(ctx context.Context, scope tenant.Scope, q EmployeeQuery) ([]Employee, int64, error) {
	f := searchFilter(scope, q.Search, "first_name", "last_name", "email", "position")
	if q.Department != "" {
		f["department"] = q.Department
	}
	filter := bson.M(f)

	total, err := r.employees.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.employees.Find(ctx, filter, pageOptions(q.Page, q.Limit))
	if err != nil {
		return nil, 0, err
	}
	out := make([]Employee, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *MongoRepo) CreateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	t.OrganizationID = scope.OrganizationID()
	_, err := r.teams.InsertOne(ctx, t)
	return mapMongoErr(err)
}

func (r *MongoRepo) GetTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	var t Team
	if err := r.teams.FindOne(ctx, byID(scope, id)).Decode(&t); err != nil {
		return Team{}, mapMongoErr(err)
	}
	if t.MemberIDs == nil {
		t.MemberIDs = []string{}
	}
	return t, nil
}

func (r *MongoRepo) UpdateTeam(ctx context.Context, scope tenant.Scope, t Team) error {
	set := bson.M{
		"name":        t.Name,
		"description": t.Description,
		"department":  t.Department,
		"is_active":   t.IsActive,
		"updated_at":  t.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if t.TeamLeadID != "" {
		set["team_lead_id"] = t.TeamLeadID
	} else {
		update["$unset"] = bson.M{"team_lead_id": ""}
	}
	res, err := r.teams.UpdateOne(ctx, byID(scope, t.ID), update)
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepo) DeleteTeam(ctx context.Context, scope tenant.Scope, id string) (Team, error) {
	var out Team
	err := r.inTx(ctx, func(ctx context.Context) error {
		var t Team
		if err := r.teams.FindOneAndDelete(ctx, byID(scope, id)).Decode(&t); err != nil {
			return mapMongoErr(err)
		}
		members := bson.M(scope.Bind(tenant.Filter{"team_ids": id}))
		if _, err := r.employees.UpdateMany(ctx, members, bson.M{"$pull": bson.M{"team_ids": id}}); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

func (r *MongoRepo) ListTeams(ctx context.Context, scope tenant.Scope, q TeamQuery) ([]Team, int64, error) {
	filter := bson.M(searchFilter(scope, q.Search, "name"))
	total, err := r.teams.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.teams.Find(ctx, filter, pageOptions(q.Page, q.Limit))
	if err != nil {
		return nil, 0, err
	}
	out := make([]Team, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// linkOp is one side of a membership change. The filter only matches when
// the change is still needed, so ModifiedCount reports whether it happened.
type linkOp struct {
	coll      *mongo.Collection
	id        string
	field     string
	value     string
	link      bool
	appliedAt time.Time
}

func (op linkOp) apply(ctx context.Context, scope tenant.Scope) (bool, error) {
	f := tenant.Filter{"_id": op.id}
	var update bson.M
	if op.link {
		f[op.field] = bson.M{"$ne": op.value}
		update = bson.M{"$addToSet": bson.M{op.field: op.value}, "$set": bson.M{"updated_at": op.appliedAt}}
	} else {
		f[op.field] = op.value
		update = bson.M{"$pull": bson.M{op.field: op.value}, "$set": bson.M{"updated_at": op.appliedAt}}
	}
	res, err := op.coll.UpdateOne(ctx, bson.M(scope.Bind(f)), update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (op linkOp) reversed() linkOp {
	op.link = !op.link
	return op
}

func (r *MongoRepo) Link(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(ctx, scope, employeeID, teamID, at, true)
}

func (r *MongoRepo) Unlink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time) (AssignmentResult, error) {
	return r.relink(ctx, scope, employeeID, teamID, at, false)
}

func (r *MongoRepo) relink(ctx context.Context, scope tenant.Scope, employeeID, teamID string, at time.Time, link bool) (AssignmentResult, error) {
	empSide := linkOp{coll: r.employees, id: employeeID, field: "team_ids", value: teamID, link: link, appliedAt: at}
	teamSide := linkOp{coll: r.teams, id: teamID, field: "member_ids", value: employeeID, link: link, appliedAt: at}

	var changed bool
	apply := func(ctx context.Context) error {
		changed = false
		if _, err := r.GetEmployee(ctx, scope, employeeID); err != nil {
			return err
		}
		if _, err := r.GetTeam(ctx, scope, teamID); err != nil {
			return err
		}
		ce, err := empSide.apply(ctx, scope)
		if err != nil {
			return err
		}
		ct, err := teamSide.apply(ctx, scope)
		if err != nil {
			return err
		}
		changed = ce || ct
		return nil
	}

	err := utils.WithMongoTx(ctx, r.client, apply)
	if errors.Is(err, utils.ErrTxnNotSupported) {
		err = r.relinkOrdered(ctx, scope, employeeID, teamID, empSide, teamSide, &changed)
	}
	if err != nil {
		return AssignmentResult{}, err
	}

	e, err := r.GetEmployee(ctx, scope, employeeID)
	if err != nil {
		return AssignmentResult{}, err
	}
	t, err := r.GetTeam(ctx, scope, teamID)
	if err != nil {
		return AssignmentResult{}, err
	}
	return AssignmentResult{Employee: e, Team: t, Changed: changed}, nil
}

// relinkOrdered is the standalone-server path: both sides are checked, the
// employee side is written, then the team side. A failed team write reverts
// the employee write if it changed anything.
func (r *MongoRepo) relinkOrdered(ctx context.Context, scope tenant.Scope, employeeID, teamID string, empSide, teamSide linkOp, changed *bool) error {
	if _, err := r.GetEmployee(ctx, scope, employeeID); err != nil {
		return err
	}
	if _, err := r.GetTeam(ctx, scope, teamID); err != nil {
		return err
	}
	ce, err := empSide.apply(ctx, scope)
	if err != nil {
		return err
	}
	ct, err := teamSide.apply(ctx, scope)
	if err != nil {
		if ce {
			if _, cerr := empSide.reversed().apply(ctx, scope); cerr != nil {
				logger.From(ctx).Error("compensating assignment revert failed",
					"employee_id", employeeID, "team_id", teamID, "err", cerr)
			}
		}
		return err
	}
	*changed = ce || ct
	return nil
}

func (r *MongoRepo) ListAssignments(ctx context.Context, scope tenant.Scope, search string) ([]Employee, []Team, error) {
	filter := bson.M(searchFilter(scope, search, "first_name", "last_name", "email"))
	cur, err := r.employees.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "first_name", Value: 1}, {Key: "last_name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, nil, err
	}
	employees := make([]Employee, 0)
	if err := cur.All(ctx, &employees); err != nil {
		return nil, nil, err
	}

	cur, err = r.teams.Find(ctx, bson.M(scope.Bind(tenant.Filter{})), options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, nil, err
	}
	teams := make([]Team, 0)
	if err := cur.All(ctx, &teams); err != nil {
		return nil, nil, err
	}
	return employees, teams, nil
}

func (r *MongoRepo) Stats(ctx context.Context, scope tenant.Scope) (Stats, error) {
	org := bson.M(scope.Bind(tenant.Filter{}))
	var s Stats
	var err error
	if s.Teams, err = r.teams.CountDocuments(ctx, org); err != nil {
		return Stats{}, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: org}},
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"employees":   bson.M{"$sum": 1},
			"assignments": bson.M{"$sum": bson.M{"$size": bson.M{"$ifNull": bson.A{"$team_ids", bson.A{}}}}},
		}}},
	}
	cur, err := r.employees.Aggregate(ctx, pipeline)
	if err != nil {
		return Stats{}, err
	}
	var rows []struct {
		Employees   int64 `bson:"employees"`
		Assignments int64 `bson:"assignments"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return Stats{}, err
	}
	if len(rows) > 0 {
		s.Employees = rows[0].Employees
		s.Assignments = rows[0].Assignments
	}
	return s, nil
}
