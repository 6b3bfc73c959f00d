// Package mockserver serves the backend REST contract over any client.Client,
// usually a LocalClient. It is what `dhsdk serve` runs and what the remote
// client tests talk to.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/v1/<type>                          list (paginated)
//	POST   /api/v1/<type>                          create
//	GET    /api/v1/<type>/<name>                   read
//	PUT    /api/v1/<type>/<name>                   update
//	DELETE /api/v1/<type>/<name>[?cascade=true]    delete
//	GET    /api/v1/-/<project>/<type>              list (paginated, filters)
//	POST   /api/v1/-/<project>/<type>              create
//	DELETE /api/v1/-/<project>/<type>?name=<name>  delete all versions
//	GET    /api/v1/-/<project>/<type>/<id>         read
//	PUT    /api/v1/-/<project>/<type>/<id>         update
//	DELETE /api/v1/-/<project>/<type>/<id>         delete one version
//	POST   /api/v1/-/<project>/runs/<id>/stop      stop a run
//	GET    /api/v1/-/<project>/runs/<id>/logs      run logs (paginated)
//
// Every response carries the X-Api-Level header. Lists answer with
// {"content": [...], "totalPages": n} and honour the page and size query
// parameters.
package mockserver
