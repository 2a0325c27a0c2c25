package mock_datastore

//go:generate -command mockgen go run go.uber.org/mock/mockgen -destination=./mocks.go github.com/victims/victims/datastore
//go:generate mockgen Lookup,Search,Store
