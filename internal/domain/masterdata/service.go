package masterdata

import "context"

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) List(ctx context.Context, workspaceID string, kind Kind) ([]RefEntity, error) {
	return s.Store.List(ctx, workspaceID, kind)
}

func (s *Service) Create(ctx context.Context, workspaceID string, kind Kind, name string) (string, error) {
	return s.Store.Create(ctx, workspaceID, kind, name)
}

func (s *Service) FindOrCreate(ctx context.Context, workspaceID string, kind Kind, name string) (string, error) {
	return s.Store.FindOrCreate(ctx, workspaceID, kind, name)
}

func (s *Service) Delete(ctx context.Context, workspaceID string, kind Kind, id string) error {
	return s.Store.Delete(ctx, workspaceID, kind, id)
}

func (s *Service) ListMasters(ctx context.Context, workspaceID string) ([]ComplianceMaster, error) {
	return s.Store.ListMasters(ctx, workspaceID)
}

func (s *Service) GetMasterByComplianceID(ctx context.Context, workspaceID, complianceID string) (ComplianceMaster, error) {
	return s.Store.GetMasterByComplianceID(ctx, workspaceID, complianceID)
}

func (s *Service) CreateMaster(ctx context.Context, workspaceID string, payload ComplianceMaster) (string, error) {
	return s.Store.CreateMaster(ctx, workspaceID, payload)
}

func (s *Service) DeleteMaster(ctx context.Context, workspaceID, id string) error {
	return s.Store.DeleteMaster(ctx, workspaceID, id)
}
