package mock_datastore

import (
	datastore "github.com/victims/victims/datastore"
)

type (
	Lookup  = datastore.Lookup
	Search  = datastore.Search
	Updater = datastore.Updater
	Store   = datastore.Store
)
